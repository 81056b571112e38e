// Copyright 2025 Ochránce Project
//
// Package verifymode defines the VerificationMode strictness order and the
// mapping from a chosen mode to its required witness tier (spec.md section
// 4.4).
package verifymode

import (
	"fmt"
	"strings"

	"github.com/hyperpolymath/ochrance/pkg/witness"
)

// Mode is one of Lax, Checked, Attested with total order Lax < Checked <
// Attested.
type Mode int

const (
	Lax Mode = iota
	Checked
	Attested
)

// String renders the mode's lowercase name, matching the CLI and @policy
// closed set {lax, checked, attested} (spec.md section 4.1).
func (m Mode) String() string {
	switch m {
	case Lax:
		return "lax"
	case Checked:
		return "checked"
	case Attested:
		return "attested"
	default:
		return "unknown"
	}
}

// Parse parses a mode name case-insensitively.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "lax":
		return Lax, nil
	case "checked":
		return Checked, nil
	case "attested":
		return Attested, nil
	default:
		return 0, fmt.Errorf("verifymode: unknown mode %q", s)
	}
}

// RequiredTier maps a mode to the witness tier a successful verification
// must produce.
func (m Mode) RequiredTier() witness.Tier {
	switch m {
	case Lax:
		return witness.Structural
	case Checked:
		return witness.HashMatch
	case Attested:
		return witness.Attested
	default:
		return witness.Attested
	}
}

// SatisfiesMinimum is the decidable predicate actual >= threshold in the
// strictness order.
func SatisfiesMinimum(threshold, actual Mode) bool { return actual >= threshold }
