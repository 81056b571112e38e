// Copyright 2025 Ochránce Project
//
// Package fsverify applies one of three verifiers (Lax, Checked, Attested)
// to an (FSState, FSManifest) pair and returns a tier-appropriate witness
// or a structured diagnostic (spec.md section 4.5).
package fsverify

import (
	"time"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/merkle"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/verifymode"
	"github.com/hyperpolymath/ochrance/pkg/witness"
)

// Verifier applies filesystem verification at a chosen mode. It is pure and
// single-threaded per call (spec.md section 5); it never performs I/O or
// suspends.
type Verifier struct {
	oracle oracle.Oracle
}

// New constructs a Verifier backed by the given content-hash oracle.
func New(o oracle.Oracle) *Verifier {
	return &Verifier{oracle: o}
}

// Verify runs the verifier appropriate to mode against (state, m) and
// returns a witness of at least mode's required tier, or a diagnostic list
// describing every failure found (Checked accumulates all mismatches
// rather than failing fast, per spec.md section 4.5).
func (v *Verifier) Verify(mode verifymode.Mode, state *block.FSState, m *manifest.FSManifest) (*witness.Witness, diagnostic.List) {
	structuralWitness, diags := v.lax(state, m)
	if len(diags) > 0 {
		return nil, diags
	}
	if mode == verifymode.Lax {
		return structuralWitness, nil
	}

	hashWitness, diags := v.checked(structuralWitness, state, m)
	if len(diags) > 0 {
		return nil, diags
	}
	if mode == verifymode.Checked {
		return hashWitness, nil
	}

	return v.attested(hashWitness, state, m)
}

// lax checks that FSState.n = FSManifest.n, that the manifest's format
// version is non-empty, and that the metadata vector is well-formed.
func (v *Verifier) lax(state *block.FSState, m *manifest.FSManifest) (*witness.Witness, diagnostic.List) {
	var diags diagnostic.List

	if state.N() != m.N() {
		diags = append(diags, diagnostic.New(
			diagnostic.QueryMissingStructure,
			diagnostic.PriorityCritical,
			diagnostic.FullSubsystem("filesystem"),
			"block count mismatch between state and manifest",
		))
	}

	if m.FormatVersion() == "" {
		diags = append(diags, diagnostic.New(
			diagnostic.QueryInvariantViolation,
			diagnostic.PriorityCritical,
			diagnostic.FullSubsystem("filesystem"),
			"manifest format version is empty",
		))
	}

	if !state.MetadataWellFormed() {
		diags = append(diags, diagnostic.New(
			diagnostic.QueryInvariantViolation,
			diagnostic.PriorityError,
			diagnostic.FullSubsystem("filesystem"),
			"metadata vector is not well-formed",
		))
	}

	if len(diags) > 0 {
		return nil, diags
	}

	return witness.NewStructural(witness.StructuralEvidence{
		BlockCount:   state.N(),
		MetadataSane: true,
	}), nil
}

// checked additionally verifies that every block's leaf digest matches the
// manifest's declared digest for that index. All mismatches are
// accumulated before returning (spec.md section 4.5 permits this).
func (v *Verifier) checked(structural *witness.Witness, state *block.FSState, m *manifest.FSManifest) (*witness.Witness, diagnostic.List) {
	var diags diagnostic.List
	algorithm := m.Algorithm()
	checked := 0

	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			diags = append(diags, diagnostic.New(diagnostic.QueryIOFailure, diagnostic.PriorityError,
				diagnostic.SingleBlock(itoa(i)), err.Error()))
			continue
		}
		want, err := m.BlockDigest(i)
		if err != nil {
			diags = append(diags, diagnostic.New(diagnostic.QueryMissingStructure, diagnostic.PriorityError,
				diagnostic.SingleBlock(itoa(i)), err.Error()))
			continue
		}
		if !b.Digest.ConstantEqual(want) {
			diags = append(diags, diagnostic.HashMismatch("blocks", want.Hex(), b.Digest.Hex(), diagnostic.SingleBlock(itoa(i))))
			continue
		}
		checked++
	}

	if len(diags) > 0 {
		return nil, diags
	}

	return witness.PromoteToHashMatch(structural, witness.HashMatchEvidence{
		Algorithm:     algorithm,
		BlocksChecked: checked,
	}), nil
}

// attested additionally recomputes the Merkle root over the manifest's
// block digests and asserts equality with the manifest's declared root.
func (v *Verifier) attested(hashMatch *witness.Witness, state *block.FSState, m *manifest.FSManifest) (*witness.Witness, diagnostic.List) {
	computedRoot, err := merkle.Root(v.oracle, m.Algorithm(), m.BlockDigests())
	if err != nil {
		return nil, diagnostic.List{diagnostic.New(diagnostic.QueryUnknownAlgorithm, diagnostic.PriorityCritical,
			diagnostic.FullSubsystem("filesystem"), err.Error())}
	}

	if !computedRoot.ConstantEqual(m.Root()) {
		return nil, diagnostic.List{diagnostic.HashMismatch("merkle-root", m.Root().Hex(), computedRoot.Hex(),
			diagnostic.FullSubsystem("filesystem"))}
	}

	return witness.PromoteToAttested(hashMatch, witness.AttestedEvidence{
		Timestamp:          time.Now(),
		InvariantSatisfied: true,
		Root:               computedRoot,
	}), nil
}

func itoa(i int) string {
	// Small integer-to-string without importing strconv in every call site;
	// block indices are always non-negative and bounded by n.
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
