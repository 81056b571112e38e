package subsystem

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/repair"
	"github.com/hyperpolymath/ochrance/pkg/verifymode"
)

type snapshotPayload struct {
	Blocks   [][]byte         `json:"blocks"`
	Metadata []block.Metadata `json:"metadata"`
}

func buildFixture(t *testing.T, n int) (*block.FSState, *manifest.FSManifest, repair.Snapshot, oracle.Oracle) {
	t.Helper()
	o := oracle.NewDefault()
	blocks := make([]block.Block, n)
	rawBlocks := make([][]byte, n)
	metadata := make([]block.Metadata, n)

	for i := 0; i < n; i++ {
		raw := make([]byte, block.Size)
		raw[0] = byte(i + 1)
		b, err := block.New(o, oracle.SHA256, raw)
		if err != nil {
			t.Fatalf("block.New: %v", err)
		}
		blocks[i] = b
		rawBlocks[i] = raw
		metadata[i] = block.Metadata{ModifiedAt: time.Now()}
	}

	state, err := block.NewFSState(blocks, metadata)
	if err != nil {
		t.Fatalf("NewFSState: %v", err)
	}

	m, err := manifest.New(o, oracle.SHA256, state.LeafDigests(), "1")
	if err != nil {
		t.Fatalf("manifest.New: %v", err)
	}

	payload, err := json.Marshal(snapshotPayload{Blocks: rawBlocks, Metadata: metadata})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	return state, m, repair.Snapshot{Payload: payload}, o
}

func TestVerifyAttestedOK(t *testing.T) {
	state, m, _, o := buildFixture(t, 4)
	s := New(Config{Oracle: o, Algorithm: oracle.SHA256})
	result := s.Verify(verifymode.Attested, state, m)
	if result.State != CycleAttestedOK {
		t.Fatalf("expected attested-ok, got %s (%v)", result.State, result.Diagnostic)
	}
}

func TestVerifyOrRepairRecoversFromCorruption(t *testing.T) {
	state, m, snapshot, o := buildFixture(t, 4)

	corruptRaw := make([]byte, block.Size)
	corruptRaw[0] = 0xEE
	corruptBlock, err := block.New(o, oracle.SHA256, corruptRaw)
	if err != nil {
		t.Fatalf("block.New: %v", err)
	}
	meta, _ := state.Metadata(2)
	if err := state.ReplaceBlock(2, corruptBlock, meta); err != nil {
		t.Fatalf("ReplaceBlock: %v", err)
	}

	s := New(Config{Oracle: o, Algorithm: oracle.SHA256})

	precheck := s.Verify(verifymode.Checked, state, m)
	if precheck.State != CycleRemediable {
		t.Fatalf("expected remediable precheck, got %s", precheck.State)
	}

	result := s.VerifyOrRepair(verifymode.Checked, state, m, snapshot, repair.RestoreBlock(2))
	if result.State != CycleAttestedOK {
		t.Fatalf("expected attested-ok after repair, got %s (%v)", result.State, result.Diagnostic)
	}
	if result.Repair == nil || result.Repair.BlocksRestored != 1 {
		t.Fatalf("expected exactly one block restored, got %+v", result.Repair)
	}
}

func TestAttestProducesConsistentManifest(t *testing.T) {
	state, _, _, o := buildFixture(t, 3)
	s := New(Config{Oracle: o, Algorithm: oracle.SHA256})

	m, err := s.Attest(state, "1")
	if err != nil {
		t.Fatalf("Attest: %v", err)
	}
	result := s.Verify(verifymode.Attested, state, m)
	if result.State != CycleAttestedOK {
		t.Fatalf("expected freshly attested manifest to verify, got %s (%v)", result.State, result.Diagnostic)
	}
}
