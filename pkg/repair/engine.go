// Copyright 2025 Ochránce Project

package repair

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
	"github.com/hyperpolymath/ochrance/pkg/logging"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// Snapshot is a content-addressed, read-only restoration source (spec.md
// section 5, Shared-resource policy: "Snapshots are read-only, shareable
// across concurrent reads"). Payload is the snapshot's encoded block and
// metadata vector.
type Snapshot struct {
	Digest  oracle.Digest
	Payload []byte
}

type snapshotPayload struct {
	Blocks   [][]byte          `json:"blocks"`
	Metadata []block.Metadata  `json:"metadata"`
}

func decodeSnapshot(s Snapshot) ([][]byte, []block.Metadata, error) {
	var p snapshotPayload
	if err := json.Unmarshal(s.Payload, &p); err != nil {
		return nil, nil, fmt.Errorf("repair: decoding snapshot payload: %w", err)
	}
	return p.Blocks, p.Metadata, nil
}

// EncodeSnapshot builds a Snapshot from a raw block and metadata vector, the
// counterpart callers outside this package (pkg/httpapi's /repair handler)
// use to hand a restoration source to Apply. Digest is
// computed over the encoded payload so a snapshot's identity is
// content-addressed, matching the read-only sharing contract in the Snapshot
// doc comment.
func EncodeSnapshot(o oracle.Oracle, algorithm oracle.Algorithm, blocks [][]byte, metadata []block.Metadata) (Snapshot, error) {
	if len(blocks) != len(metadata) {
		return Snapshot{}, fmt.Errorf("repair: snapshot invariant violated: %d blocks but %d metadata entries", len(blocks), len(metadata))
	}
	payload, err := json.Marshal(snapshotPayload{Blocks: blocks, Metadata: metadata})
	if err != nil {
		return Snapshot{}, fmt.Errorf("repair: encoding snapshot payload: %w", err)
	}
	digest, err := o.Sum(algorithm, payload)
	if err != nil {
		return Snapshot{}, fmt.Errorf("repair: digesting snapshot payload: %w", err)
	}
	return Snapshot{Digest: digest, Payload: payload}, nil
}

// Result is the outcome of a repair application.
type Result struct {
	OK             bool
	BlocksRestored int
	Reason         string
	Diagnostic     *diagnostic.Diagnostic
}

// Engine applies repairs to an FSState from a Snapshot, under the
// one-token-per-repair discipline, and re-verifies afterward (spec.md
// section 4.6).
type Engine struct {
	oracle    oracle.Oracle
	algorithm oracle.Algorithm
	logger    *logging.Logger
}

// New constructs a repair Engine.
func New(o oracle.Oracle, algorithm oracle.Algorithm, logger *logging.Logger) *Engine {
	return &Engine{oracle: o, algorithm: algorithm, logger: logger}
}

// Apply consumes token, restores the region it names into state from
// snapshot, and reports the result. It does not itself re-verify; callers
// use subsystem.VerifiedSubsystem.VerifyOrRepair to get the full
// verify-repair-reverify cycle (spec.md section 4.7).
//
// Atomicity: the state is mutated via a staged copy that is only swapped
// into the real FSState once every step up to the mutation succeeds
// (spec.md section 4.6, Atomicity).
func (e *Engine) Apply(token *Token, state *block.FSState, snapshot Snapshot) Result {
	if err := token.Consume(); err != nil {
		return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
	}

	rawBlocks, metadata, err := decodeSnapshot(snapshot)
	if err != nil {
		return e.fail("snapshot-corrupt", err.Error(), diagnostic.QuerySnapshotCorrupt)
	}

	if len(rawBlocks) != state.N() {
		return e.fail("snapshot-incompatible",
			fmt.Sprintf("snapshot has %d blocks, state has %d", len(rawBlocks), state.N()),
			diagnostic.QuerySnapshotIncompat)
	}

	action := token.Action()
	restored := 0

	switch action.Kind {
	case ActionRestoreBlock:
		n, err := e.restoreIndex(state, action.Index, rawBlocks, metadata)
		if err != nil {
			return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
		}
		restored = n

	case ActionRewriteMetadata:
		idx, err := resolveIndex(state, action.Path)
		if err != nil {
			return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
		}
		if idx >= len(metadata) {
			return e.fail("repair-failed", "snapshot metadata vector too short", diagnostic.QueryRepairFailed)
		}
		existing, _ := state.Block(idx)
		if err := state.ReplaceBlock(idx, existing, metadata[idx]); err != nil {
			return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
		}
		restored = 1

	case ActionQuarantineFile:
		idx, err := resolveIndex(state, action.Path)
		if err != nil {
			return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
		}
		existing, err := state.Block(idx)
		if err != nil {
			return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
		}
		existingMeta, _ := state.Metadata(idx)
		existingMeta.ReadOnly = true
		quarantined := block.Block{Raw: existing.Raw, Digest: oracle.ZeroDigest(e.algorithm)}
		if err := state.ReplaceBlock(idx, quarantined, existingMeta); err != nil {
			return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
		}
		restored = 1

	case ActionRebuildIndex:
		if len(metadata) != len(rawBlocks) {
			return e.fail("repair-failed", "snapshot metadata vector length does not match its blocks", diagnostic.QueryRepairFailed)
		}
		staged := make([]block.Block, len(rawBlocks))
		for i, raw := range rawBlocks {
			b, err := block.New(e.oracle, e.algorithm, raw)
			if err != nil {
				return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
			}
			staged[i] = b
		}
		for i, b := range staged {
			if err := state.ReplaceBlock(i, b, metadata[i]); err != nil {
				return e.fail("repair-failed", err.Error(), diagnostic.QueryRepairFailed)
			}
			restored++
		}

	default:
		return e.fail("repair-failed", "unrecognised repair action", diagnostic.QueryRepairFailed)
	}

	if e.logger != nil {
		e.logger.Info("repair applied",
			logging.Field{Key: "token_id", Value: token.ID().String()},
			logging.Field{Key: "blocks_restored", Value: restored},
			logging.Field{Key: "applied_at", Value: time.Now().Format(time.RFC3339)},
		)
	}

	return Result{OK: true, BlocksRestored: restored}
}

func (e *Engine) restoreIndex(state *block.FSState, i int, rawBlocks [][]byte, metadata []block.Metadata) (int, error) {
	if i < 0 || i >= len(rawBlocks) {
		return 0, fmt.Errorf("repair: restore-block index %d out of snapshot range", i)
	}
	b, err := block.New(e.oracle, e.algorithm, rawBlocks[i])
	if err != nil {
		return 0, err
	}
	if err := state.ReplaceBlock(i, b, metadata[i]); err != nil {
		return 0, err
	}
	return 1, nil
}

// resolveIndex resolves a path-keyed action to a block index. Ochránce's
// block layer is purely positional, so a path is accepted as its decimal
// index; callers integrating with a real path-addressed filesystem layer
// supply the resolved index upstream.
func resolveIndex(state *block.FSState, path string) (int, error) {
	var idx int
	if _, err := fmt.Sscanf(path, "%d", &idx); err != nil {
		return 0, fmt.Errorf("repair: cannot resolve path %q to a block index: %w", path, err)
	}
	if idx < 0 || idx >= state.N() {
		return 0, fmt.Errorf("repair: resolved index %d out of range [0,%d)", idx, state.N())
	}
	return idx, nil
}

func (e *Engine) fail(reason, message string, query diagnostic.Query) Result {
	d := diagnostic.New(query, diagnostic.PriorityError, diagnostic.FullSubsystem("filesystem"), message)
	if e.logger != nil {
		e.logger.WithDiagnostic(d).Error("repair failed")
	}
	return Result{OK: false, Reason: reason, Diagnostic: d}
}
