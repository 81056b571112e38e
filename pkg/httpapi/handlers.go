// Copyright 2025 Ochránce Project
//
// Package httpapi implements cmd/ochranced's HTTP façade: /verify, /repair,
// /attest, /health, wired to a VerifiedSubsystem (spec.md section 6,
// optional HTTP façade). /metrics is mounted by cmd/ochranced itself.
package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hyperpolymath/ochrance/pkg/a2ml"
	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/fsload"
	"github.com/hyperpolymath/ochrance/pkg/logging"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/metrics"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/repair"
	"github.com/hyperpolymath/ochrance/pkg/subsystem"
	"github.com/hyperpolymath/ochrance/pkg/verifymode"
)

// Handlers bundles the dependencies cmd/ochranced's HTTP routes need.
type Handlers struct {
	System       *subsystem.VerifiedSubsystem
	Oracle       oracle.Oracle
	Algorithm    oracle.Algorithm
	Metrics      *metrics.Registry
	Logger       *logging.Logger
	SubsystemTag string
}

// VerifyRequest is the body of POST /verify.
type VerifyRequest struct {
	InputPath string `json:"input_path"`
	IndexPath string `json:"index_path"`
	DocPath   string `json:"doc_path"`
	Mode      string `json:"mode"`
}

// VerifyResponse is the body of a /verify response.
type VerifyResponse struct {
	State      string `json:"state"`
	Tier       string `json:"tier,omitempty"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// HandleVerify handles POST /verify.
func (h *Handlers) HandleVerify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mode, err := verifymode.Parse(req.Mode)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := fsload.Load(h.Oracle, h.Algorithm, req.InputPath)
	if err != nil {
		writeJSONError(w, "loading input: "+err.Error(), http.StatusBadRequest)
		return
	}

	indexFile, err := os.Open(req.IndexPath)
	if err != nil {
		writeJSONError(w, "opening index: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer indexFile.Close()
	fsManifest, err := manifest.DecodeIndex(indexFile, h.Oracle, h.Algorithm)
	if err != nil {
		writeJSONError(w, "decoding index: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	result := h.System.Verify(mode, state, fsManifest)
	if h.Metrics != nil {
		outcome := string(result.State)
		h.Metrics.ObserveVerify(mode.String(), outcome, time.Since(start).Seconds())
	}

	resp := VerifyResponse{State: string(result.State)}
	if result.Witness != nil {
		resp.Tier = result.Witness.Tier().String()
	}
	if result.Diagnostic != nil {
		resp.Diagnostic = result.Diagnostic.String()
	}
	json.NewEncoder(w).Encode(resp)
}

// AttestRequest is the body of POST /attest.
type AttestRequest struct {
	InputPath     string `json:"input_path"`
	IndexPath     string `json:"index_path"`
	DocPath       string `json:"doc_path"`
	FormatVersion string `json:"format_version"`
	Producer      string `json:"producer"`
}

// AttestResponse is the body of an /attest response.
type AttestResponse struct {
	MerkleRoot string `json:"merkle_root"`
	BlockCount int    `json:"block_count"`
}

// HandleAttest handles POST /attest.
func (h *Handlers) HandleAttest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AttestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FormatVersion == "" {
		req.FormatVersion = "1"
	}

	state, err := fsload.Load(h.Oracle, h.Algorithm, req.InputPath)
	if err != nil {
		writeJSONError(w, "loading input: "+err.Error(), http.StatusBadRequest)
		return
	}

	fsManifest, err := h.System.Attest(state, req.FormatVersion)
	if err != nil {
		writeJSONError(w, "attesting: "+err.Error(), http.StatusInternalServerError)
		return
	}

	indexFile, err := os.Create(req.IndexPath)
	if err != nil {
		writeJSONError(w, "creating index: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer indexFile.Close()
	if err := manifest.EncodeIndex(indexFile, fsManifest); err != nil {
		writeJSONError(w, "writing index: "+err.Error(), http.StatusInternalServerError)
		return
	}

	doc := a2ml.FromFSManifest(uuid.NewString(), req.Producer, h.SubsystemTag, fsManifest, time.Now())
	if err := os.WriteFile(req.DocPath, []byte(a2ml.SerializeDocument(doc)+"\n"), 0644); err != nil {
		writeJSONError(w, "writing document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(AttestResponse{
		MerkleRoot: fsManifest.Root().String(),
		BlockCount: fsManifest.N(),
	})
}

// RepairRequest is the body of POST /repair. ActionKind selects one of the
// four remediations the repair engine knows (spec.md section 4.6);
// SnapshotBlocks/SnapshotMetadata is the restoration source the caller
// supplies inline, since a repair request is the one place that source must
// cross the wire.
type RepairRequest struct {
	InputPath        string           `json:"input_path"`
	ActionKind       string           `json:"action_kind"`
	ActionIndex      int              `json:"action_index,omitempty"`
	ActionPath       string           `json:"action_path,omitempty"`
	SnapshotBlocks   [][]byte         `json:"snapshot_blocks"`
	SnapshotMetadata []block.Metadata `json:"snapshot_metadata"`
}

// RepairResponse is the body of a /repair response.
type RepairResponse struct {
	State          string `json:"state"`
	BlocksRestored int    `json:"blocks_restored,omitempty"`
	Diagnostic     string `json:"diagnostic,omitempty"`
}

func parseActionKind(req RepairRequest) (repair.Action, error) {
	switch req.ActionKind {
	case "restore-block":
		return repair.RestoreBlock(req.ActionIndex), nil
	case "rewrite-metadata":
		return repair.RewriteMetadata(req.ActionPath), nil
	case "quarantine-file":
		return repair.QuarantineFile(req.ActionPath), nil
	case "rebuild-index":
		return repair.RebuildIndex(), nil
	default:
		return repair.Action{}, fmt.Errorf("unrecognised action_kind %q", req.ActionKind)
	}
}

// HandleRepair handles POST /repair. It applies a single remediation to the
// file at input_path from the inline snapshot, then rewrites input_path from
// the repaired block state (spec.md section 4.6).
func (h *Handlers) HandleRepair(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RepairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	action, err := parseActionKind(req)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	state, err := fsload.Load(h.Oracle, h.Algorithm, req.InputPath)
	if err != nil {
		writeJSONError(w, "loading input: "+err.Error(), http.StatusBadRequest)
		return
	}

	snapshot, err := repair.EncodeSnapshot(h.Oracle, h.Algorithm, req.SnapshotBlocks, req.SnapshotMetadata)
	if err != nil {
		writeJSONError(w, "encoding snapshot: "+err.Error(), http.StatusBadRequest)
		return
	}

	token := repair.Issue(action)
	result := h.System.Repair(token, state, snapshot)

	resp := RepairResponse{State: string(result.State)}
	if result.Repair != nil {
		resp.BlocksRestored = result.Repair.BlocksRestored
	}
	if result.Diagnostic != nil {
		resp.Diagnostic = result.Diagnostic.String()
	}

	if result.State == subsystem.CycleRepaired {
		if err := writeStateBack(req.InputPath, state); err != nil {
			writeJSONError(w, "writing repaired state: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	json.NewEncoder(w).Encode(resp)
}

// writeStateBack reconstructs the on-disk file from a repaired FSState's
// block vector. The block layer pads its last block to block.Size (pkg/fsload),
// so the rewritten file's length is a multiple of block.Size even when the
// original was not.
func writeStateBack(path string, state *block.FSState) error {
	var buf bytes.Buffer
	for i := 0; i < state.N(); i++ {
		b, err := state.Block(i)
		if err != nil {
			return err
		}
		buf.Write(b.Raw)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
