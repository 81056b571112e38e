// Copyright 2025 Ochránce Project
//
// Package block defines the unit of storage integrity (a fixed-size block
// and its metadata) and FSState, the runtime block-and-metadata snapshot
// being verified (spec.md section 3).
package block

import (
	"fmt"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/merkle"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// Size is the system-constant block size in bytes.
const Size = 4096

// Metadata carries a block's non-content attributes. Metadata never
// participates in integrity hashing unless the manifest explicitly
// incorporates it (spec.md section 3).
type Metadata struct {
	ModifiedAt time.Time
	Owner      string
	ReadOnly   bool
}

// Block is a (raw-bytes, leaf-digest) pair.
type Block struct {
	Raw    []byte
	Digest oracle.Digest
}

// New computes a block's leaf digest from raw content under the given
// algorithm and oracle, failing if raw is not exactly Size bytes.
func New(o oracle.Oracle, algorithm oracle.Algorithm, raw []byte) (Block, error) {
	if len(raw) != Size {
		return Block{}, fmt.Errorf("block: raw content must be %d bytes, got %d", Size, len(raw))
	}
	digest, err := merkle.LeafDigest(o, algorithm, raw)
	if err != nil {
		return Block{}, err
	}
	return Block{Raw: append([]byte(nil), raw...), Digest: digest}, nil
}

// FSState is an ordered collection of exactly n blocks with matching
// metadata (spec.md section 3). The only way to construct one is via NewFSState,
// which is the sole point establishing n; all later indexing is bounds
// checked at this type's boundary (spec.md section 9, Design Notes).
type FSState struct {
	blocks   []Block
	metadata []Metadata
}

// NewFSState constructs an FSState, validating that blocks and metadata
// have equal length.
func NewFSState(blocks []Block, metadata []Metadata) (*FSState, error) {
	if len(blocks) != len(metadata) {
		return nil, fmt.Errorf("block: FSState invariant violated: %d blocks but %d metadata entries", len(blocks), len(metadata))
	}
	return &FSState{
		blocks:   append([]Block(nil), blocks...),
		metadata: append([]Metadata(nil), metadata...),
	}, nil
}

// N returns the number of blocks in the state.
func (s *FSState) N() int { return len(s.blocks) }

// Block returns the block at index i, bounds-checked.
func (s *FSState) Block(i int) (Block, error) {
	if i < 0 || i >= len(s.blocks) {
		return Block{}, fmt.Errorf("block: index %d out of range [0,%d)", i, len(s.blocks))
	}
	return s.blocks[i], nil
}

// Metadata returns the metadata at index i, bounds-checked.
func (s *FSState) Metadata(i int) (Metadata, error) {
	if i < 0 || i >= len(s.metadata) {
		return Metadata{}, fmt.Errorf("block: index %d out of range [0,%d)", i, len(s.metadata))
	}
	return s.metadata[i], nil
}

// ReplaceBlock overwrites block i and its metadata in place. Used
// exclusively by the repair engine; no observer may read this state after
// a repair call begins (spec.md section 5 Shared-resource policy).
func (s *FSState) ReplaceBlock(i int, b Block, m Metadata) error {
	if i < 0 || i >= len(s.blocks) {
		return fmt.Errorf("block: index %d out of range [0,%d)", i, len(s.blocks))
	}
	s.blocks[i] = b
	s.metadata[i] = m
	return nil
}

// MetadataWellFormed reports whether every metadata entry satisfies the
// structural sanity checked at Lax verification: a non-zero ModifiedAt and
// either an empty or non-empty Owner consistently (no hard invariant beyond
// presence — the field is simply required to exist).
func (s *FSState) MetadataWellFormed() bool {
	for _, m := range s.metadata {
		if m.ModifiedAt.IsZero() {
			return false
		}
	}
	return true
}

// LeafDigests returns the leaf digest of every block, in order, for Merkle
// root recomputation.
func (s *FSState) LeafDigests() []oracle.Digest {
	out := make([]oracle.Digest, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = b.Digest
	}
	return out
}
