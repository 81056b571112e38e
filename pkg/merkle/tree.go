// Copyright 2025 Ochránce Project
//
// Package merkle builds a binary hash tree over a list of leaf digests and
// checks inclusion proofs against it (spec.md section 4.2). Construction is
// deterministic: odd counts at any level promote the trailing subtree's
// root by duplicating it, and a fixed domain-separation prefix distinguishes
// leaf hashing from internal-node hashing to prevent second-preimage
// attacks (spec.md section 9, Open Questions).
package merkle

import (
	"errors"
	"fmt"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// Domain-separation prefixes for leaf and internal-node hashing.
const (
	leafPrefix     = 0x00
	internalPrefix = 0x01
)

var (
	// ErrEmptyTree is returned by Proof et al. when the tree has no leaves.
	ErrEmptyTree = errors.New("merkle: cannot operate on an empty tree")
	// ErrLeafNotFound is returned when a leaf digest is not present in the tree.
	ErrLeafNotFound = errors.New("merkle: leaf not found")
)

// Side indicates which side of the combination a sibling occupies.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// ProofStep is one (side, sibling-digest) pair in an inclusion proof path.
type ProofStep struct {
	Side    Side
	Sibling oracle.Digest
}

// Proof is a complete Merkle inclusion proof: a leaf digest plus an ordered
// path of combination steps, whose length equals the tree depth.
type Proof struct {
	Leaf      oracle.Digest
	LeafIndex int
	Path      []ProofStep
	TreeSize  int
}

// Tree is a binary hash tree over a list of leaf digests.
type Tree struct {
	algorithm oracle.Algorithm
	oracle    oracle.Oracle
	leaves    []oracle.Digest
	levels    [][]oracle.Digest // level 0 = leaves, last level = [root]
	root      oracle.Digest
}

// combine hashes two digests together under the internal-node domain
// separation tag. Both operands must already carry `algorithm`.
func combine(o oracle.Oracle, algorithm oracle.Algorithm, left, right oracle.Digest) oracle.Digest {
	buf := make([]byte, 1+len(left.Bytes)+len(right.Bytes))
	buf[0] = internalPrefix
	n := copy(buf[1:], left.Bytes)
	copy(buf[1+n:], right.Bytes)
	d, err := o.Sum(algorithm, buf)
	if err != nil {
		// algorithm was already validated when the tree/leaves were built.
		panic(fmt.Sprintf("merkle: combine: %v", err))
	}
	return d
}

// LeafDigest computes the domain-separated leaf digest for raw content.
// FSState blocks use this, not a bare oracle.Sum, so that a leaf digest can
// never collide with an internal-node digest of the same bytes.
func LeafDigest(o oracle.Oracle, algorithm oracle.Algorithm, content []byte) (oracle.Digest, error) {
	buf := make([]byte, 1+len(content))
	buf[0] = leafPrefix
	copy(buf[1:], content)
	return o.Sum(algorithm, buf)
}

// Build constructs a Merkle tree from the given leaf digests, all of which
// must share the same algorithm. An empty leaf list yields a tree whose
// Root is the well-known zero digest for the algorithm (spec.md section
// 4.2); this requires the caller to state which algorithm an empty tree is
// built under.
func Build(o oracle.Oracle, algorithm oracle.Algorithm, leaves []oracle.Digest) (*Tree, error) {
	for i, l := range leaves {
		if l.Algorithm != algorithm {
			return nil, fmt.Errorf("merkle: leaf %d has algorithm %s, tree is %s", i, l.Algorithm, algorithm)
		}
	}

	t := &Tree{algorithm: algorithm, oracle: o, leaves: append([]oracle.Digest(nil), leaves...)}

	if len(leaves) == 0 {
		t.root = oracle.ZeroDigest(algorithm)
		t.levels = [][]oracle.Digest{{}}
		return t, nil
	}

	current := append([]oracle.Digest(nil), leaves...)
	t.levels = [][]oracle.Digest{current}

	for len(current) > 1 {
		next := make([]oracle.Digest, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 < len(current) {
				next = append(next, combine(o, algorithm, current[i], current[i+1]))
			} else {
				// Odd trailing element: duplicated-last promotion.
				next = append(next, combine(o, algorithm, current[i], current[i]))
			}
		}
		t.levels = append(t.levels, next)
		current = next
	}

	t.root = current[0]
	return t, nil
}

// Root returns the tree's root digest.
func (t *Tree) Root() oracle.Digest { return t.root }

// LeafCount returns the number of leaves in the tree.
func (t *Tree) LeafCount() int { return len(t.leaves) }

// Depth returns the tree's depth (number of levels above the leaves).
func (t *Tree) Depth() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels) - 1
}

// Proof generates an inclusion proof for the leaf at the given index.
func (t *Tree) Proof(leafIndex int) (*Proof, error) {
	if len(t.leaves) == 0 {
		return nil, ErrEmptyTree
	}
	if leafIndex < 0 || leafIndex >= len(t.leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", leafIndex, len(t.leaves))
	}

	proof := &Proof{
		Leaf:      t.leaves[leafIndex],
		LeafIndex: leafIndex,
		TreeSize:  len(t.leaves),
	}

	idx := leafIndex
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		var siblingIdx int
		var side Side
		if idx%2 == 0 {
			siblingIdx = idx + 1
			side = Right
		} else {
			siblingIdx = idx - 1
			side = Left
		}

		var sibling oracle.Digest
		if siblingIdx < len(nodes) {
			sibling = nodes[siblingIdx]
		} else {
			// Odd-length level: the trailing node was combined with itself.
			sibling = nodes[idx]
			side = Right
		}

		proof.Path = append(proof.Path, ProofStep{Side: side, Sibling: sibling})
		idx /= 2
	}

	return proof, nil
}

// ProofForLeaf finds the leaf matching digest and returns its proof.
func (t *Tree) ProofForLeaf(digest oracle.Digest) (*Proof, error) {
	for i, l := range t.leaves {
		if l.Equal(digest) {
			return t.Proof(i)
		}
	}
	return nil, ErrLeafNotFound
}

// VerifyProof walks a proof's path combining hashes on the indicated side
// and compares the final value to expectedRoot using constant-time
// equality (spec.md section 4.2 and section 9 Open Questions).
func VerifyProof(o oracle.Oracle, proof *Proof, expectedRoot oracle.Digest) bool {
	if proof == nil {
		return false
	}
	algorithm := expectedRoot.Algorithm
	if proof.Leaf.Algorithm != algorithm {
		return false
	}

	if len(proof.Path) == 0 {
		// Single-leaf tree: the leaf digest is the root.
		return proof.Leaf.ConstantEqual(expectedRoot)
	}

	current := proof.Leaf
	for _, step := range proof.Path {
		if step.Sibling.Algorithm != algorithm {
			return false
		}
		switch step.Side {
		case Left:
			current = combine(o, algorithm, step.Sibling, current)
		case Right:
			current = combine(o, algorithm, current, step.Sibling)
		default:
			return false
		}
	}

	return current.ConstantEqual(expectedRoot)
}

// Root computes the Merkle root over a list of leaf digests without
// retaining the intermediate tree, for callers (such as Attested-mode
// verification) that only need the final root value.
func Root(o oracle.Oracle, algorithm oracle.Algorithm, leaves []oracle.Digest) (oracle.Digest, error) {
	t, err := Build(o, algorithm, leaves)
	if err != nil {
		return oracle.Digest{}, err
	}
	return t.Root(), nil
}
