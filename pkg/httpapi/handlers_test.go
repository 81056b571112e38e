package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/metrics"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/subsystem"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	o := oracle.NewDefault()
	return &Handlers{
		System:       subsystem.New(subsystem.Config{Oracle: o, Algorithm: oracle.SHA256}),
		Oracle:       o,
		Algorithm:    oracle.SHA256,
		Metrics:      metrics.New(),
		SubsystemTag: "test",
	}
}

func TestAttestThenVerifyRoundTrip(t *testing.T) {
	h := newTestHandlers(t)
	dir := t.TempDir()

	inputPath := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(inputPath, bytes.Repeat([]byte{0x42}, 4096*3), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	indexPath := filepath.Join(dir, "data.index")
	docPath := filepath.Join(dir, "data.a2ml")

	attestBody, _ := json.Marshal(AttestRequest{
		InputPath: inputPath, IndexPath: indexPath, DocPath: docPath,
		FormatVersion: "1", Producer: "test-suite",
	})
	attestReq := httptest.NewRequest("POST", "/attest", bytes.NewReader(attestBody))
	attestRec := httptest.NewRecorder()
	h.HandleAttest(attestRec, attestReq)

	if attestRec.Code != 200 {
		t.Fatalf("attest: expected 200, got %d: %s", attestRec.Code, attestRec.Body.String())
	}
	var attestResp AttestResponse
	if err := json.Unmarshal(attestRec.Body.Bytes(), &attestResp); err != nil {
		t.Fatalf("decoding attest response: %v", err)
	}
	if attestResp.BlockCount != 3 {
		t.Fatalf("expected block_count 3, got %d", attestResp.BlockCount)
	}

	verifyBody, _ := json.Marshal(VerifyRequest{
		InputPath: inputPath, IndexPath: indexPath, DocPath: docPath, Mode: "attested",
	})
	verifyReq := httptest.NewRequest("POST", "/verify", bytes.NewReader(verifyBody))
	verifyRec := httptest.NewRecorder()
	h.HandleVerify(verifyRec, verifyReq)

	if verifyRec.Code != 200 {
		t.Fatalf("verify: expected 200, got %d: %s", verifyRec.Code, verifyRec.Body.String())
	}
	var verifyResp VerifyResponse
	if err := json.Unmarshal(verifyRec.Body.Bytes(), &verifyResp); err != nil {
		t.Fatalf("decoding verify response: %v", err)
	}
	if verifyResp.State != string(subsystem.CycleAttestedOK) {
		t.Fatalf("expected attested-ok, got %s (%s)", verifyResp.State, verifyResp.Diagnostic)
	}
	if verifyResp.Tier != "attested" {
		t.Fatalf("expected attested tier witness, got %s", verifyResp.Tier)
	}
}

func TestHandleRepairRestoresCorruptBlock(t *testing.T) {
	h := newTestHandlers(t)
	dir := t.TempDir()

	good := bytes.Repeat([]byte{0x42}, 4096*2)
	inputPath := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(inputPath, good, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	corrupt := append([]byte(nil), good...)
	corrupt[0] = 0xFF
	if err := os.WriteFile(inputPath, corrupt, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	meta := make([]block.Metadata, 2)
	for i := range meta {
		meta[i] = block.Metadata{ModifiedAt: time.Now()}
	}
	repairBody, _ := json.Marshal(RepairRequest{
		InputPath:        inputPath,
		ActionKind:       "restore-block",
		ActionIndex:      0,
		SnapshotBlocks:   [][]byte{good[:4096], good[4096:]},
		SnapshotMetadata: meta,
	})
	req := httptest.NewRequest("POST", "/repair", bytes.NewReader(repairBody))
	rec := httptest.NewRecorder()
	h.HandleRepair(rec, req)

	if rec.Code != 200 {
		t.Fatalf("repair: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp RepairResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding repair response: %v", err)
	}
	if resp.State != string(subsystem.CycleRepaired) {
		t.Fatalf("expected repaired, got %s (%s)", resp.State, resp.Diagnostic)
	}
	if resp.BlocksRestored != 1 {
		t.Fatalf("expected 1 block restored, got %d", resp.BlocksRestored)
	}

	restored, err := os.ReadFile(inputPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(restored, good) {
		t.Fatalf("expected input file to be restored to its original content")
	}
}

func TestHandleRepairRejectsUnknownAction(t *testing.T) {
	h := newTestHandlers(t)
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "data.bin")
	if err := os.WriteFile(inputPath, bytes.Repeat([]byte{0x01}, 4096), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	body, _ := json.Marshal(RepairRequest{InputPath: inputPath, ActionKind: "not-a-real-action"})
	req := httptest.NewRequest("POST", "/repair", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandleRepair(rec, req)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for an unrecognised action kind, got %d", rec.Code)
	}
}

func TestHandleVerifyRejectsNonPost(t *testing.T) {
	h := newTestHandlers(t)
	req := httptest.NewRequest("GET", "/verify", nil)
	rec := httptest.NewRecorder()
	h.HandleVerify(rec, req)
	if rec.Code != 405 {
		t.Fatalf("expected 405 for GET /verify, got %d", rec.Code)
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	h := newTestHandlers(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
