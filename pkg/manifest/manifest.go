// Copyright 2025 Ochránce Project
//
// Package manifest defines FSManifest, the immutable integrity
// specification for a filesystem state (spec.md section 3). An FSManifest
// is produced by attestation and consumed by verification; it is never
// mutated after construction.
package manifest

import (
	"fmt"

	"github.com/hyperpolymath/ochrance/pkg/merkle"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// FSManifest is (root-digest, per-block-digest-vector[n], format-version).
// The invariant root-digest = merkle-root(per-block-digest-vector) is
// established once, at construction time, by New.
type FSManifest struct {
	root          oracle.Digest
	blockDigests  []oracle.Digest
	formatVersion string
}

// New builds an FSManifest, computing and fixing its Merkle root from the
// given per-block digest vector. All digests must share algorithm.
func New(o oracle.Oracle, algorithm oracle.Algorithm, blockDigests []oracle.Digest, formatVersion string) (*FSManifest, error) {
	for i, d := range blockDigests {
		if d.Algorithm != algorithm {
			return nil, fmt.Errorf("manifest: block digest %d has algorithm %s, manifest is %s", i, d.Algorithm, algorithm)
		}
	}
	if formatVersion == "" {
		return nil, fmt.Errorf("manifest: format version must be non-empty")
	}
	root, err := merkle.Root(o, algorithm, blockDigests)
	if err != nil {
		return nil, fmt.Errorf("manifest: computing merkle root: %w", err)
	}
	return &FSManifest{
		root:          root,
		blockDigests:  append([]oracle.Digest(nil), blockDigests...),
		formatVersion: formatVersion,
	}, nil
}

// FromTrusted constructs an FSManifest from an already-computed root,
// without recomputing it, for the case where the root was read back from a
// persisted A2ML document and must be trusted as authoritative (the
// Attested-mode verifier is what re-derives and checks it against the
// block digests).
func FromTrusted(root oracle.Digest, blockDigests []oracle.Digest, formatVersion string) (*FSManifest, error) {
	if formatVersion == "" {
		return nil, fmt.Errorf("manifest: format version must be non-empty")
	}
	return &FSManifest{
		root:          root,
		blockDigests:  append([]oracle.Digest(nil), blockDigests...),
		formatVersion: formatVersion,
	}, nil
}

// N returns the number of block digests in the manifest.
func (m *FSManifest) N() int { return len(m.blockDigests) }

// Root returns the manifest's Merkle root digest.
func (m *FSManifest) Root() oracle.Digest { return m.root }

// FormatVersion returns the manifest's declared format version string.
func (m *FSManifest) FormatVersion() string { return m.formatVersion }

// Algorithm returns the hash algorithm implied by the manifest's digests.
func (m *FSManifest) Algorithm() oracle.Algorithm { return m.root.Algorithm }

// BlockDigest returns the declared digest for block i, bounds checked.
func (m *FSManifest) BlockDigest(i int) (oracle.Digest, error) {
	if i < 0 || i >= len(m.blockDigests) {
		return oracle.Digest{}, fmt.Errorf("manifest: index %d out of range [0,%d)", i, len(m.blockDigests))
	}
	return m.blockDigests[i], nil
}

// BlockDigests returns a copy of the full per-block digest vector.
func (m *FSManifest) BlockDigests() []oracle.Digest {
	return append([]oracle.Digest(nil), m.blockDigests...)
}

// TreeDepth returns the depth implied by N() under duplicated-last
// promotion, for validating @refs.tree_depth consistency.
func TreeDepth(n int) int {
	if n <= 1 {
		return 0
	}
	depth := 0
	for n > 1 {
		n = (n + 1) / 2
		depth++
	}
	return depth
}
