// Copyright 2025 Ochránce Project
//
// Package fsload reads a regular file from disk into the fixed-size block
// layout block.FSState requires, for use by cmd/attest and cmd/verify. The
// last block is zero-padded up to block.Size when the file length is not an
// exact multiple of it.
package fsload

import (
	"os"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// Load reads path and splits its content into block.Size-byte blocks,
// computing each block's leaf digest under the given oracle and algorithm.
func Load(o oracle.Oracle, algorithm oracle.Algorithm, path string) (*block.FSState, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	n := (len(raw) + block.Size - 1) / block.Size
	if n == 0 {
		n = 1
	}
	blocks := make([]block.Block, n)
	metadata := make([]block.Metadata, n)

	for i := 0; i < n; i++ {
		start := i * block.Size
		end := start + block.Size
		chunk := make([]byte, block.Size)
		if start < len(raw) {
			copied := end
			if copied > len(raw) {
				copied = len(raw)
			}
			copy(chunk, raw[start:copied])
		}
		b, err := block.New(o, algorithm, chunk)
		if err != nil {
			return nil, err
		}
		blocks[i] = b
		metadata[i] = block.Metadata{
			ModifiedAt: info.ModTime(),
			Owner:      "",
			ReadOnly:   info.Mode().Perm()&0200 == 0,
		}
	}

	return block.NewFSState(blocks, metadata)
}
