// Copyright 2025 Ochránce Project
//
// Package diagnostic implements the q/p/z diagnostic triple produced by every
// failing operation in the verification and repair engine: query (what),
// priority (how severe), zone (blast radius). See spec.md section 3 and 7.
package diagnostic

import (
	"fmt"
	"strings"
	"time"
)

// Query is the structural cause of a failure.
type Query string

const (
	QueryMissingStructure   Query = "missing-structure"
	QueryHashMismatch       Query = "hash-mismatch"
	QueryMissingSection     Query = "missing-section"
	QueryVersionMismatch    Query = "version-mismatch"
	QueryInvariantViolation Query = "invariant-violation"
	QueryParseFailure       Query = "parse-failure"
	QueryIOFailure          Query = "io-failure"
	QuerySnapshotCorrupt    Query = "snapshot-corrupt"
	QuerySnapshotIncompat   Query = "snapshot-incompatible"
	QueryUnknownAlgorithm   Query = "unknown-hash-algorithm"
	QueryRepairFailed       Query = "repair-failed"
	QueryDuplicateSection   Query = "duplicate-section"
	QueryMissingRequired    Query = "missing-required"
	QueryNestingExceeded    Query = "nesting-exceeded"
	QueryUnterminatedString Query = "unterminated-string"
	QueryMalformedHash      Query = "malformed-hash"
	QueryUnknownKeyword     Query = "unknown-keyword"
	QueryUnexpectedChar     Query = "unexpected-character"
)

// Priority is the severity of a diagnostic, totally ordered.
type Priority string

const (
	PriorityInfo     Priority = "info"
	PriorityWarn     Priority = "warn"
	PriorityError    Priority = "error"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityInfo:     0,
	PriorityWarn:     1,
	PriorityError:    2,
	PriorityCritical: 3,
}

// Less reports whether p is strictly less severe than other.
func (p Priority) Less(other Priority) bool {
	return priorityRank[p] < priorityRank[other]
}

// ZoneKind distinguishes the shape of a Zone's blast radius.
type ZoneKind string

const (
	ZoneSingleBlock    ZoneKind = "single-block"
	ZoneSubtree        ZoneKind = "subtree"
	ZoneFullSubsystem  ZoneKind = "full-subsystem"
	ZoneCrossCutting   ZoneKind = "cross-cutting"
)

// Zone describes the blast radius of a diagnostic.
type Zone struct {
	Kind  ZoneKind
	Path  string   // single-block: block path/index as string
	Root  string   // subtree: root digest hex
	Depth int      // subtree: depth
	Name  string   // full-subsystem: subsystem name
	List  []string // cross-cutting: list of affected identifiers
}

// SingleBlock builds a single-block zone.
func SingleBlock(path string) Zone { return Zone{Kind: ZoneSingleBlock, Path: path} }

// Subtree builds a subtree zone.
func Subtree(root string, depth int) Zone {
	return Zone{Kind: ZoneSubtree, Root: root, Depth: depth}
}

// FullSubsystem builds a full-subsystem zone.
func FullSubsystem(name string) Zone { return Zone{Kind: ZoneFullSubsystem, Name: name} }

// CrossCutting builds a cross-cutting zone.
func CrossCutting(list []string) Zone { return Zone{Kind: ZoneCrossCutting, List: list} }

// String renders a zone in the compact form used by the CLI single-line
// diagnostic output ("block:2", "subtree:<root>@3", "subsystem:filesystem").
func (z Zone) String() string {
	switch z.Kind {
	case ZoneSingleBlock:
		return fmt.Sprintf("block:%s", z.Path)
	case ZoneSubtree:
		return fmt.Sprintf("subtree:%s@%d", z.Root, z.Depth)
	case ZoneFullSubsystem:
		return fmt.Sprintf("subsystem:%s", z.Name)
	case ZoneCrossCutting:
		return fmt.Sprintf("cross-cutting:%s", strings.Join(z.List, ","))
	default:
		return "unknown-zone"
	}
}

// Location is a lexer/parser source position, attached to parse-failure
// diagnostics.
type Location struct {
	Line   int
	Column int
}

// Diagnostic is the q/p/z triple every failing operation returns.
type Diagnostic struct {
	Query    Query
	Priority Priority
	Zone     Zone

	// Field/Expected/Actual populate hash-mismatch diagnostics.
	Field    string
	Expected string
	Actual   string

	// Location populates parse-failure diagnostics.
	Location Location

	Message   string
	Timestamp time.Time
	Cause     error
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	return d.String()
}

// String renders the single-line "[PRIORITY] query | zone" form required by
// spec.md section 7 for CLI stderr output.
func (d *Diagnostic) String() string {
	msg := string(d.Query)
	if d.Message != "" {
		msg = d.Message
	}
	return fmt.Sprintf("[%s] %s | %s", strings.ToUpper(string(d.Priority)), msg, d.Zone.String())
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (d *Diagnostic) Unwrap() error { return d.Cause }

// ExitCode maps a diagnostic to the CLI exit codes from spec.md section 6.
func (d *Diagnostic) ExitCode() int {
	switch d.Query {
	case QueryMissingStructure, QueryInvariantViolation, QueryMissingSection, QueryMissingRequired, QueryVersionMismatch:
		return 2
	case QueryHashMismatch:
		if d.Field == "merkle-root" {
			return 4
		}
		return 3
	case QueryRepairFailed:
		return 5
	case QueryParseFailure, QueryDuplicateSection, QueryNestingExceeded,
		QueryUnterminatedString, QueryMalformedHash, QueryUnknownKeyword, QueryUnexpectedChar:
		return 64
	case QuerySnapshotCorrupt, QuerySnapshotIncompat, QueryUnknownAlgorithm, QueryIOFailure:
		return 70
	default:
		return 70
	}
}

// New builds a diagnostic, stamping the current time.
func New(query Query, priority Priority, zone Zone, message string) *Diagnostic {
	return &Diagnostic{
		Query:     query,
		Priority:  priority,
		Zone:      zone,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// HashMismatch builds a hash-mismatch diagnostic at error priority.
func HashMismatch(field, expected, actual string, zone Zone) *Diagnostic {
	d := New(QueryHashMismatch, PriorityError, zone,
		fmt.Sprintf("hash-mismatch on %s: expected %s, got %s", field, expected, actual))
	d.Field, d.Expected, d.Actual = field, expected, actual
	return d
}

// ParseFailure builds a parse-failure diagnostic carrying a source location.
func ParseFailure(message string, loc Location) *Diagnostic {
	d := New(QueryParseFailure, PriorityCritical, CrossCutting(nil), message)
	d.Location = loc
	return d
}

// Wrap attaches a causing error to a diagnostic.
func (d *Diagnostic) Wrap(cause error) *Diagnostic {
	d.Cause = cause
	return d
}

// List is an accumulated collection of diagnostics, used by the validator
// which never fails fast (spec.md section 4.1).
type List []*Diagnostic

// HighestPriority returns the most severe priority present, or "" if empty.
func (l List) HighestPriority() Priority {
	var best Priority
	found := false
	for _, d := range l {
		if !found || best.Less(d.Priority) {
			best = d.Priority
			found = true
		}
	}
	return best
}

func (l List) Error() string {
	parts := make([]string, len(l))
	for i, d := range l {
		parts[i] = d.String()
	}
	return strings.Join(parts, "; ")
}
