// Copyright 2025 Ochránce Project
//
// Portable wire encoding for a Merkle inclusion proof, so a Proof value can
// travel inside an A2ML @attestation proof-witness blob and be independently
// re-verified without trusting any intermediary (adapted from the teacher's
// portable receipt format).

package merkle

import (
	"encoding/json"
	"fmt"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// WireProof is the JSON-serializable form of a Proof.
type WireProof struct {
	Algorithm string      `json:"algorithm"`
	Leaf      string      `json:"leaf"`
	LeafIndex int         `json:"leaf_index"`
	TreeSize  int         `json:"tree_size"`
	Path      []WireStep  `json:"path"`
}

// WireStep is the JSON-serializable form of a ProofStep.
type WireStep struct {
	Side    string `json:"side"`
	Sibling string `json:"sibling"`
}

// ToWire converts a Proof to its portable JSON form.
func (p *Proof) ToWire() WireProof {
	w := WireProof{
		Algorithm: string(p.Leaf.Algorithm),
		Leaf:      p.Leaf.Hex(),
		LeafIndex: p.LeafIndex,
		TreeSize:  p.TreeSize,
		Path:      make([]WireStep, len(p.Path)),
	}
	for i, step := range p.Path {
		w.Path[i] = WireStep{Side: string(step.Side), Sibling: step.Sibling.Hex()}
	}
	return w
}

// FromWire reconstructs a Proof from its portable JSON form.
func FromWire(w WireProof) (*Proof, error) {
	algorithm, err := oracle.ParseAlgorithm(w.Algorithm)
	if err != nil {
		return nil, err
	}
	leaf, err := oracle.ParseHashLiteral(algorithm, w.Leaf)
	if err != nil {
		return nil, fmt.Errorf("wire proof leaf: %w", err)
	}

	p := &Proof{Leaf: leaf, LeafIndex: w.LeafIndex, TreeSize: w.TreeSize}
	for i, step := range w.Path {
		sibling, err := oracle.ParseHashLiteral(algorithm, step.Sibling)
		if err != nil {
			return nil, fmt.Errorf("wire proof path[%d]: %w", i, err)
		}
		var side Side
		switch step.Side {
		case string(Left):
			side = Left
		case string(Right):
			side = Right
		default:
			return nil, fmt.Errorf("wire proof path[%d]: unknown side %q", i, step.Side)
		}
		p.Path = append(p.Path, ProofStep{Side: side, Sibling: sibling})
	}
	return p, nil
}

// MarshalJSON and UnmarshalJSON make Proof itself JSON round-trippable by
// delegating to the wire form.
func (p *Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToWire())
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var w WireProof
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	reconstructed, err := FromWire(w)
	if err != nil {
		return err
	}
	*p = *reconstructed
	return nil
}
