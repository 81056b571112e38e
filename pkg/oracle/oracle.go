// Copyright 2025 Ochránce Project
//
// Package oracle implements the content-hash oracle: a pure, opaque mapping
// from a byte sequence to a fixed-size digest, for each of the four
// supported algorithms (spec.md section 3). Hash function internals are
// delegated entirely to crypto/sha256, crypto/sha512, and the blake3
// implementation from lukechampine.com/blake3 — this package never
// implements a cryptographic primitive itself.
package oracle

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"
)

// Algorithm identifies one of the four supported hash families.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA384 Algorithm = "sha384"
	SHA512 Algorithm = "sha512"
	BLAKE3 Algorithm = "blake3"
)

// DigestLength returns the fixed byte length for an algorithm, or 0 if the
// algorithm is unrecognised.
func DigestLength(a Algorithm) int {
	switch a {
	case SHA256, BLAKE3:
		return 32
	case SHA384:
		return 48
	case SHA512:
		return 64
	default:
		return 0
	}
}

// ParseAlgorithm parses an algorithm tag case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case string(SHA256):
		return SHA256, nil
	case string(SHA384):
		return SHA384, nil
	case string(SHA512):
		return SHA512, nil
	case string(BLAKE3):
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", s)
	}
}

// Digest is a (algorithm-tag, byte-sequence) pair whose length is fixed by
// the tag. Equality is structural; ConstantEqual must be used whenever one
// side is adversary-controlled (spec.md section 3).
type Digest struct {
	Algorithm Algorithm
	Bytes     []byte
}

// Hex renders the digest as lowercase hex.
func (d Digest) Hex() string { return hex.EncodeToString(d.Bytes) }

// String renders the "algorithm:hexdigest" wire form (spec.md section 6).
func (d Digest) String() string { return fmt.Sprintf("%s:%s", d.Algorithm, d.Hex()) }

// Equal performs ordinary structural equality. Never use this to compare a
// digest derived from adversary-controlled input against an expected value;
// use ConstantEqual instead.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && string(d.Bytes) == string(other.Bytes)
}

// ConstantEqual performs a constant-time comparison, required whenever
// comparing a computed block digest against a manifest-declared digest
// (spec.md section 9, Open Questions).
func (d Digest) ConstantEqual(other Digest) bool {
	if d.Algorithm != other.Algorithm || len(d.Bytes) != len(other.Bytes) {
		return false
	}
	return subtle.ConstantTimeCompare(d.Bytes, other.Bytes) == 1
}

// IsZero reports whether a Digest has never been assigned (no algorithm).
func (d Digest) IsZero() bool { return d.Algorithm == "" }

// ParseHashLiteral parses a bare hex digest (case-insensitive, with no
// algorithm tag or '#' prefix) under the given algorithm into a Digest,
// validating the decoded length against the algorithm's expected size.
func ParseHashLiteral(algorithm Algorithm, hexDigest string) (Digest, error) {
	raw, err := hex.DecodeString(strings.ToLower(hexDigest))
	if err != nil {
		return Digest{}, fmt.Errorf("malformed hash literal: %w", err)
	}
	want := DigestLength(algorithm)
	if want == 0 {
		return Digest{}, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
	if len(raw) != want {
		return Digest{}, fmt.Errorf("digest length %d does not match algorithm %s (want %d)", len(raw), algorithm, want)
	}
	return Digest{Algorithm: algorithm, Bytes: raw}, nil
}

// ZeroDigest returns the well-known all-zero sentinel digest for an
// algorithm, used as the empty-root in Merkle construction (spec.md
// section 4.2).
func ZeroDigest(a Algorithm) Digest {
	n := DigestLength(a)
	return Digest{Algorithm: a, Bytes: make([]byte, n)}
}

// Oracle is the pure, opaque per-algorithm digest function.
type Oracle interface {
	// Sum computes the digest of data under the given algorithm.
	Sum(algorithm Algorithm, data []byte) (Digest, error)
}

// Default is the standard oracle backed by crypto/sha256, crypto/sha512,
// and blake3.
type Default struct{}

// NewDefault constructs the default content-hash oracle.
func NewDefault() Default { return Default{} }

// Sum implements Oracle.
func (Default) Sum(algorithm Algorithm, data []byte) (Digest, error) {
	switch algorithm {
	case SHA256:
		sum := sha256.Sum256(data)
		return Digest{Algorithm: algorithm, Bytes: sum[:]}, nil
	case SHA384:
		sum := sha512.Sum384(data)
		return Digest{Algorithm: algorithm, Bytes: sum[:]}, nil
	case SHA512:
		sum := sha512.Sum512(data)
		return Digest{Algorithm: algorithm, Bytes: sum[:]}, nil
	case BLAKE3:
		sum := blake3.Sum256(data)
		return Digest{Algorithm: algorithm, Bytes: sum[:]}, nil
	default:
		return Digest{}, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}
