// Copyright 2025 Ochránce Project

package a2ml

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

var requiredManifestFields = []string{"id", "version", "producer", "subsystem", "produced_at"}

var requiredRefsFields = []string{"merkle_root", "algorithm", "block_count", "tree_depth"}

// Validate checks m against every invariant in spec.md section 4.1
// (Validator) and returns the full accumulated list of violations; a nil
// or empty list means the document is valid.
func Validate(m *Manifest) diagnostic.List {
	var diags diagnostic.List

	diags = append(diags, validateManifestSection(m)...)
	diags = append(diags, validateRefsSection(m)...)
	diags = append(diags, validatePolicySection(m)...)
	diags = append(diags, validateAuditSection(m)...)

	return diags
}

func validateManifestSection(m *Manifest) diagnostic.List {
	var diags diagnostic.List
	sec, ok := m.Section(SectionManifest)
	if !ok {
		return diagnostic.List{diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityCritical,
			diagnostic.FullSubsystem("manifest"), "missing required section @manifest")}
	}

	for _, field := range requiredManifestFields {
		v, present := sec.Get(field)
		if !present || valueIsEmpty(v) {
			diags = append(diags, diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityError,
				diagnostic.FullSubsystem("manifest"), "manifest."+field+" is required and must be non-empty"))
			continue
		}
		if field == "produced_at" {
			if _, err := parseISO8601Z(v.Str); err != nil {
				diags = append(diags, diagnostic.New(diagnostic.QueryVersionMismatch, diagnostic.PriorityError,
					diagnostic.FullSubsystem("manifest"), "manifest.produced_at is not ISO-8601 with trailing Z"))
			}
		}
	}
	return diags
}

func validateRefsSection(m *Manifest) diagnostic.List {
	var diags diagnostic.List
	sec, ok := m.Section(SectionRefs)
	if !ok {
		return nil
	}

	var algorithm oracle.Algorithm
	algValue, hasAlg := sec.Get("algorithm")
	if !hasAlg || valueIsEmpty(algValue) {
		diags = append(diags, diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityError,
			diagnostic.FullSubsystem("refs"), "refs.algorithm is required"))
	} else {
		a, err := oracle.ParseAlgorithm(algValue.Str)
		if err != nil {
			diags = append(diags, diagnostic.New(diagnostic.QueryUnknownAlgorithm, diagnostic.PriorityError,
				diagnostic.FullSubsystem("refs"), err.Error()))
		} else {
			algorithm = a
		}
	}

	rootValue, hasRoot := sec.Get("merkle_root")
	if !hasRoot || valueIsEmpty(rootValue) {
		diags = append(diags, diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityError,
			diagnostic.FullSubsystem("refs"), "refs.merkle_root is required"))
	} else if hasAlg && algorithm != "" {
		if _, err := oracle.ParseHashLiteral(algorithm, rootValue.Str); err != nil {
			diags = append(diags, diagnostic.New(diagnostic.QueryMalformedHash, diagnostic.PriorityError,
				diagnostic.FullSubsystem("refs"), err.Error()))
		}
	}

	blockCountValue, hasCount := sec.Get("block_count")
	var blockCount int64 = -1
	if !hasCount {
		diags = append(diags, diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityError,
			diagnostic.FullSubsystem("refs"), "refs.block_count is required"))
	} else if blockCountValue.Kind != ValueInteger || blockCountValue.Int < 0 {
		diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityError,
			diagnostic.FullSubsystem("refs"), "refs.block_count must be a non-negative integer"))
	} else {
		blockCount = blockCountValue.Int
	}

	treeDepthValue, hasDepth := sec.Get("tree_depth")
	if !hasDepth {
		diags = append(diags, diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityError,
			diagnostic.FullSubsystem("refs"), "refs.tree_depth is required"))
	} else if blockCount >= 0 && treeDepthValue.Kind == ValueInteger {
		want := manifest.TreeDepth(int(blockCount))
		if treeDepthValue.Int != int64(want) {
			diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityError,
				diagnostic.FullSubsystem("refs"), "refs.tree_depth is inconsistent with refs.block_count"))
		}
	}

	return diags
}

func validatePolicySection(m *Manifest) diagnostic.List {
	sec, ok := m.Section(SectionPolicy)
	if !ok {
		return nil
	}
	var diags diagnostic.List

	passed := intField(sec, "passed")
	failed := intField(sec, "failed")
	skipped := intField(sec, "skipped")
	total := intField(sec, "total_policies")

	if passed+failed+skipped != total {
		diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityError,
			diagnostic.FullSubsystem("policy"), "policy.passed + policy.failed + policy.skipped must equal policy.total_policies"))
	}

	if v, ok := sec.Get("violations"); ok && v.Kind == ValueList {
		if int64(len(v.List)) > failed {
			diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityError,
				diagnostic.FullSubsystem("policy"), "policy.violations length must not exceed policy.failed"))
		}
	}

	if modeValue, ok := sec.Get("mode"); ok {
		switch modeValue.Str {
		case "lax", "checked", "attested":
		default:
			diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityError,
				diagnostic.FullSubsystem("policy"), "policy.mode must be one of lax, checked, attested"))
		}
	}

	return diags
}

func validateAuditSection(m *Manifest) diagnostic.List {
	sec, ok := m.Section(SectionAudit)
	if !ok {
		return nil
	}
	var diags diagnostic.List
	var last time.Time
	haveLast := false

	algorithm := auditChainAlgorithm(m)
	prevHash := ""
	if algorithm != "" {
		prevHash = oracle.ZeroDigest(algorithm).String()
	}

	for _, e := range sec.Entries {
		if e.Value.Kind != ValueBlock {
			continue
		}
		block := e.Value.Block
		tsValue, ok := block.Get("timestamp")
		if !ok {
			continue
		}
		ts, err := parseISO8601Z(tsValue.Str)
		if err != nil {
			diags = append(diags, diagnostic.New(diagnostic.QueryVersionMismatch, diagnostic.PriorityWarn,
				diagnostic.FullSubsystem("audit"), "audit entry timestamp is not ISO-8601 with trailing Z"))
			continue
		}
		if haveLast && ts.Before(last) {
			diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityError,
				diagnostic.FullSubsystem("audit"), "audit timestamps must be monotonically non-decreasing"))
		}
		last = ts
		haveLast = true

		if algorithm == "" {
			continue
		}
		declared, hasPrev := block.Get("prev_hash")
		switch {
		case !hasPrev || valueIsEmpty(declared):
			diags = append(diags, diagnostic.New(diagnostic.QueryMissingRequired, diagnostic.PriorityError,
				diagnostic.FullSubsystem("audit"), "audit entry is missing prev_hash"))
		case declared.Str != prevHash:
			diags = append(diags, diagnostic.New(diagnostic.QueryInvariantViolation, diagnostic.PriorityCritical,
				diagnostic.FullSubsystem("audit"), "audit entry prev_hash does not match the preceding entry's digest: chain broken"))
		}

		if digest, err := oracle.NewDefault().Sum(algorithm, []byte(canonicalBlockText(block))); err == nil {
			prevHash = digest.String()
		}
	}
	return diags
}

// auditChainAlgorithm reads the hash algorithm @refs declares, since audit
// chaining reuses the document's own content-hash algorithm rather than
// naming a second one.
func auditChainAlgorithm(m *Manifest) oracle.Algorithm {
	refs, ok := m.Section(SectionRefs)
	if !ok {
		return ""
	}
	v, ok := refs.Get("algorithm")
	if !ok {
		return ""
	}
	a, err := oracle.ParseAlgorithm(v.Str)
	if err != nil {
		return ""
	}
	return a
}

func intField(sec *Section, key string) int64 {
	v, ok := sec.Get(key)
	if !ok || v.Kind != ValueInteger {
		return 0
	}
	return v.Int
}

func valueIsEmpty(v Value) bool {
	switch v.Kind {
	case ValueString, ValueIdentifier, ValueHashLiteral, ValueTimestamp, ValueBlob:
		return v.Str == ""
	default:
		return false
	}
}

func parseISO8601Z(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") {
		return time.Time{}, fmt.Errorf("a2ml: timestamp %q is missing trailing Z", s)
	}
	return time.Parse(time.RFC3339, s)
}
