package repair

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

func buildState(t *testing.T, o oracle.Oracle, n int) *block.FSState {
	t.Helper()
	blocks := make([]block.Block, n)
	metadata := make([]block.Metadata, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, block.Size)
		raw[0] = byte(i)
		b, err := block.New(o, oracle.SHA256, raw)
		if err != nil {
			t.Fatalf("block.New: %v", err)
		}
		blocks[i] = b
		metadata[i] = block.Metadata{ModifiedAt: time.Now()}
	}
	state, err := block.NewFSState(blocks, metadata)
	if err != nil {
		t.Fatalf("NewFSState: %v", err)
	}
	return state
}

func buildSnapshot(t *testing.T, n int, corrupt int) Snapshot {
	t.Helper()
	blocks := make([][]byte, n)
	metadata := make([]block.Metadata, n)
	for i := 0; i < n; i++ {
		raw := make([]byte, block.Size)
		raw[0] = byte(i)
		blocks[i] = raw
		metadata[i] = block.Metadata{ModifiedAt: time.Now()}
	}
	payload, err := json.Marshal(snapshotPayload{Blocks: blocks, Metadata: metadata})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	return Snapshot{Payload: payload}
}

func TestApplyRestoreBlock(t *testing.T) {
	o := oracle.NewDefault()
	state := buildState(t, o, 3)

	corruptRaw := make([]byte, block.Size)
	corruptRaw[0] = 0xFF
	corruptBlock, err := block.New(o, oracle.SHA256, corruptRaw)
	if err != nil {
		t.Fatalf("block.New: %v", err)
	}
	meta, _ := state.Metadata(1)
	if err := state.ReplaceBlock(1, corruptBlock, meta); err != nil {
		t.Fatalf("ReplaceBlock: %v", err)
	}

	engine := New(o, oracle.SHA256, nil)
	token := Issue(RestoreBlock(1))
	snap := buildSnapshot(t, 3, -1)

	result := engine.Apply(token, state, snap)
	if !result.OK {
		t.Fatalf("expected repair to succeed, got reason %s diag %v", result.Reason, result.Diagnostic)
	}
	if result.BlocksRestored != 1 {
		t.Fatalf("expected 1 block restored, got %d", result.BlocksRestored)
	}
	if !token.Consumed() {
		t.Fatal("expected token to be marked consumed")
	}
}

func TestApplyRejectsDoubleConsumption(t *testing.T) {
	o := oracle.NewDefault()
	state := buildState(t, o, 2)
	engine := New(o, oracle.SHA256, nil)
	token := Issue(RestoreBlock(0))
	snap := buildSnapshot(t, 2, -1)

	first := engine.Apply(token, state, snap)
	if !first.OK {
		t.Fatalf("expected first apply to succeed: %+v", first)
	}
	second := engine.Apply(token, state, snap)
	if second.OK {
		t.Fatal("expected second apply of the same token to fail")
	}
}

func TestApplySnapshotIncompatible(t *testing.T) {
	o := oracle.NewDefault()
	state := buildState(t, o, 4)
	engine := New(o, oracle.SHA256, nil)
	token := Issue(RestoreBlock(0))
	snap := buildSnapshot(t, 2, -1)

	result := engine.Apply(token, state, snap)
	if result.OK {
		t.Fatal("expected snapshot-incompatible failure")
	}
	if result.Diagnostic == nil || result.Diagnostic.Query != "snapshot-incompatible" {
		t.Fatalf("expected snapshot-incompatible diagnostic, got %+v", result.Diagnostic)
	}
}

func TestApplySnapshotCorrupt(t *testing.T) {
	o := oracle.NewDefault()
	state := buildState(t, o, 2)
	engine := New(o, oracle.SHA256, nil)
	token := Issue(RestoreBlock(0))
	snap := Snapshot{Payload: []byte("not json")}

	result := engine.Apply(token, state, snap)
	if result.OK {
		t.Fatal("expected snapshot-corrupt failure")
	}
	if result.Diagnostic == nil || result.Diagnostic.Query != "snapshot-corrupt" {
		t.Fatalf("expected snapshot-corrupt diagnostic, got %+v", result.Diagnostic)
	}
}
