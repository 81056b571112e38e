// Copyright 2025 Ochránce Project
//
// Package witness implements the three-tier proof witness algebra
// (Structural, Hash-Match, Attested) from spec.md section 4.3: each tier is
// a strict strengthening of the previous, reached only through a Promote
// constructor that consumes the prior tier plus new evidence, and
// projected back down only through a Weaken destructor that discards the
// extra evidence. No tier exposes a default, evidence-free constructor.
package witness

import (
	"time"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// Tier identifies a witness's strength, totally ordered Structural <
// HashMatch < Attested.
type Tier int

const (
	Structural Tier = iota
	HashMatch
	Attested
)

// String renders a tier name.
func (t Tier) String() string {
	switch t {
	case Structural:
		return "structural"
	case HashMatch:
		return "hash-match"
	case Attested:
		return "attested"
	default:
		return "unknown"
	}
}

// AtLeast reports whether t is at least as strong as threshold.
func (t Tier) AtLeast(threshold Tier) bool { return t >= threshold }

// StructuralEvidence is the fact asserted by the Structural tier: the
// filesystem state's shape matches the manifest's declared shape.
type StructuralEvidence struct {
	BlockCount      int
	MetadataSane    bool
}

// HashMatchEvidence is the fact asserted by the Hash-Match tier, in
// addition to StructuralEvidence: every block's computed digest equals its
// manifest-declared digest.
type HashMatchEvidence struct {
	Algorithm       oracle.Algorithm
	BlocksChecked   int
}

// AttestedEvidence is the fact asserted by the Attested tier, in addition
// to HashMatchEvidence: the Merkle root recomputed over the manifest's
// block digests equals the manifest's declared root, observed at a point
// in time.
type AttestedEvidence struct {
	Timestamp          time.Time
	InvariantSatisfied bool
	Root               oracle.Digest
}

// Witness carries or implies every fact its tier asserts. Consumers that
// require tier T accept witnesses of tier T or stricter (Tier.AtLeast).
// The zero value is not a valid witness — construct only via NewStructural
// or a Promote* function.
type Witness struct {
	tier       Tier
	structural StructuralEvidence
	hashMatch  HashMatchEvidence
	attested   AttestedEvidence
}

// Tier returns the witness's tier.
func (w *Witness) Tier() Tier { return w.tier }

// Structural returns the Structural-tier evidence, present at every tier.
func (w *Witness) Structural() StructuralEvidence { return w.structural }

// HashMatchData returns the Hash-Match evidence. Valid only when
// w.Tier().AtLeast(HashMatch).
func (w *Witness) HashMatchData() HashMatchEvidence { return w.hashMatch }

// AttestedData returns the Attested evidence. Valid only when
// w.Tier() == Attested.
func (w *Witness) AttestedData() AttestedEvidence { return w.attested }

// NewStructural constructs a base Structural witness from its evidence.
// This is the only entry point into the witness lattice: every Hash-Match
// or Attested witness is reached by promoting one of these.
func NewStructural(evidence StructuralEvidence) *Witness {
	return &Witness{tier: Structural, structural: evidence}
}

// PromoteToHashMatch strengthens a Structural witness to Hash-Match by
// supplying hash-equality evidence. Panics if w is not exactly Structural —
// promotion is always one tier at a time, never skipped.
func PromoteToHashMatch(w *Witness, evidence HashMatchEvidence) *Witness {
	if w.tier != Structural {
		panic("witness: PromoteToHashMatch requires a Structural witness")
	}
	return &Witness{tier: HashMatch, structural: w.structural, hashMatch: evidence}
}

// PromoteToAttested strengthens a Hash-Match witness to Attested by
// supplying attestation metadata. Panics if w is not exactly Hash-Match.
func PromoteToAttested(w *Witness, evidence AttestedEvidence) *Witness {
	if w.tier != HashMatch {
		panic("witness: PromoteToAttested requires a Hash-Match witness")
	}
	return &Witness{tier: Attested, structural: w.structural, hashMatch: w.hashMatch, attested: evidence}
}

// WeakenToHashMatch projects an Attested witness down to Hash-Match,
// discarding the attestation evidence. Panics if w is not Attested.
func WeakenToHashMatch(w *Witness) *Witness {
	if w.tier != Attested {
		panic("witness: WeakenToHashMatch requires an Attested witness")
	}
	return &Witness{tier: HashMatch, structural: w.structural, hashMatch: w.hashMatch}
}

// WeakenToStructural projects a Hash-Match (or, transitively, Attested)
// witness down to Structural, discarding all hash/attestation evidence.
func WeakenToStructural(w *Witness) *Witness {
	if w.tier == Structural {
		return &Witness{tier: Structural, structural: w.structural}
	}
	return &Witness{tier: Structural, structural: w.structural}
}
