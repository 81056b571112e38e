// Copyright 2025 Ochránce Project
//
// Package policy implements decidable integrity policy predicates and the
// counter tallying consumed by A2ML's @policy section (spec.md section
// 4.1, Validator: "passed + failed + skipped = total_policies" and
// "|violations| <= failed").
package policy

import (
	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/verifymode"
	"github.com/hyperpolymath/ochrance/pkg/witness"
)

// Verdict is the decidable outcome of a single predicate evaluation.
type Verdict int

const (
	Passed Verdict = iota
	Failed
	Skipped
)

// Context bundles the facts a predicate may inspect. A predicate never
// mutates context; it is pure and total.
type Context struct {
	State    *block.FSState
	Manifest *manifest.FSManifest
	Mode     verifymode.Mode
	Witness  *witness.Witness
}

// Predicate is a named, decidable integrity check over a Context.
type Predicate struct {
	Name string
	Eval func(Context) Verdict
}

// AllOf combines predicates conjunctively: Failed if any evaluates
// Failed, else Skipped if any evaluates Skipped, else Passed.
func AllOf(name string, predicates ...Predicate) Predicate {
	return Predicate{Name: name, Eval: func(ctx Context) Verdict {
		sawSkipped := false
		for _, p := range predicates {
			switch p.Eval(ctx) {
			case Failed:
				return Failed
			case Skipped:
				sawSkipped = true
			}
		}
		if sawSkipped {
			return Skipped
		}
		return Passed
	}}
}

// AnyOf combines predicates disjunctively: Passed if any evaluates
// Passed, else Skipped if any evaluates Skipped, else Failed.
func AnyOf(name string, predicates ...Predicate) Predicate {
	return Predicate{Name: name, Eval: func(ctx Context) Verdict {
		sawSkipped := false
		for _, p := range predicates {
			switch p.Eval(ctx) {
			case Passed:
				return Passed
			case Skipped:
				sawSkipped = true
			}
		}
		if sawSkipped {
			return Skipped
		}
		return Failed
	}}
}

// Not inverts Passed and Failed; Skipped is preserved.
func Not(name string, p Predicate) Predicate {
	return Predicate{Name: name, Eval: func(ctx Context) Verdict {
		switch p.Eval(ctx) {
		case Passed:
			return Failed
		case Failed:
			return Passed
		default:
			return Skipped
		}
	}}
}

// RequireMinimumTier builds a predicate requiring the context's witness
// to be at least threshold, Skipped if no witness is present.
func RequireMinimumTier(name string, threshold witness.Tier) Predicate {
	return Predicate{Name: name, Eval: func(ctx Context) Verdict {
		if ctx.Witness == nil {
			return Skipped
		}
		if ctx.Witness.Tier().AtLeast(threshold) {
			return Passed
		}
		return Failed
	}}
}

// RequireModeAtLeast builds a predicate requiring the context's mode to
// be at least threshold.
func RequireModeAtLeast(name string, threshold verifymode.Mode) Predicate {
	return Predicate{Name: name, Eval: func(ctx Context) Verdict {
		return boolToVerdict(verifymode.SatisfiesMinimum(threshold, ctx.Mode))
	}}
}

// RequireFormatVersion builds a predicate requiring the manifest's format
// version to equal want.
func RequireFormatVersion(name, want string) Predicate {
	return Predicate{Name: name, Eval: func(ctx Context) Verdict {
		if ctx.Manifest == nil {
			return Skipped
		}
		return boolToVerdict(ctx.Manifest.FormatVersion() == want)
	}}
}

func boolToVerdict(ok bool) Verdict {
	if ok {
		return Passed
	}
	return Failed
}

// Report is the tallied outcome of evaluating a predicate set against a
// Context, satisfying the @policy invariant passed+failed+skipped=total
// and |violations|<=failed by construction.
type Report struct {
	Total      int
	Passed     int
	Failed     int
	Skipped    int
	Violations []string
}

// Evaluate runs every predicate against ctx and tallies the result.
func Evaluate(ctx Context, predicates ...Predicate) Report {
	r := Report{Total: len(predicates)}
	for _, p := range predicates {
		switch p.Eval(ctx) {
		case Passed:
			r.Passed++
		case Failed:
			r.Failed++
			r.Violations = append(r.Violations, p.Name)
		case Skipped:
			r.Skipped++
		}
	}
	return r
}
