// Copyright 2025 Ochránce Project
//
// bridge.go converts between the engine's manifest.FSManifest and the
// audit-facing A2ML AST, used by cmd/attest and cmd/verify.
package a2ml

import (
	"fmt"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/manifest"
)

// FromFSManifest builds an A2ML Manifest carrying @manifest and @refs
// sections describing m, for the attestation document written alongside
// the full per-block index (spec.md section 4.1: @refs never carries the
// per-block digest vector itself).
func FromFSManifest(id, producer, subsystemTag string, m *manifest.FSManifest, producedAt time.Time) *Manifest {
	manifestSection := &Section{
		Tag: SectionManifest,
		Entries: []Entry{
			{Key: "id", Value: Value{Kind: ValueString, Str: id}},
			{Key: "version", Value: Value{Kind: ValueString, Str: m.FormatVersion()}},
			{Key: "producer", Value: Value{Kind: ValueString, Str: producer}},
			{Key: "subsystem", Value: Value{Kind: ValueString, Str: subsystemTag}},
			{Key: "produced_at", Value: Value{Kind: ValueTimestamp, Str: producedAt.UTC().Format(time.RFC3339)}},
		},
	}

	refsSection := &Section{
		Tag: SectionRefs,
		Entries: []Entry{
			{Key: "merkle_root", Value: Value{Kind: ValueHashLiteral, Str: m.Root().Hex()}},
			{Key: "algorithm", Value: Value{Kind: ValueIdentifier, Str: string(m.Algorithm())}},
			{Key: "block_count", Value: Value{Kind: ValueInteger, Int: int64(m.N())}},
			{Key: "tree_depth", Value: Value{Kind: ValueInteger, Int: int64(manifest.TreeDepth(m.N()))}},
		},
	}

	return &Manifest{
		MajorVersion: HeaderMajor,
		MinorVersion: HeaderMinor,
		Sections: map[SectionTag]*Section{
			SectionManifest: manifestSection,
			SectionRefs:     refsSection,
		},
	}
}

// RefsSummary is the subset of @refs cmd/verify cross-checks against the
// locally recomputed manifest.FSManifest.
type RefsSummary struct {
	MerkleRootHex string
	Algorithm     string
	BlockCount    int64
}

// ExtractRefs reads the @refs section of doc into a RefsSummary.
func ExtractRefs(doc *Manifest) (RefsSummary, error) {
	section, ok := doc.Section(SectionRefs)
	if !ok {
		return RefsSummary{}, fmt.Errorf("a2ml: document has no @refs section")
	}
	root, ok := section.Get("merkle_root")
	if !ok {
		return RefsSummary{}, fmt.Errorf("a2ml: @refs missing merkle_root")
	}
	algorithm, ok := section.Get("algorithm")
	if !ok {
		return RefsSummary{}, fmt.Errorf("a2ml: @refs missing algorithm")
	}
	blockCount, ok := section.Get("block_count")
	if !ok {
		return RefsSummary{}, fmt.Errorf("a2ml: @refs missing block_count")
	}
	return RefsSummary{
		MerkleRootHex: root.Str,
		Algorithm:     algorithm.Str,
		BlockCount:    blockCount.Int,
	}, nil
}
