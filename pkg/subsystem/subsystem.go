// Copyright 2025 Ochránce Project
//
// Package subsystem implements the VerifiedSubsystem façade: verify,
// repair, attest over a filesystem's state and manifest, plus the
// verify-or-repair convenience pipeline (spec.md section 4.7). A
// per-subsystem exclusive guard covers the window from token issuance to
// re-verification completion, so a verification-in-progress never races a
// repair on the same state (spec.md section 5, Shared-resource policy).
package subsystem

import (
	"sync"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/block"
	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
	"github.com/hyperpolymath/ochrance/pkg/fsverify"
	"github.com/hyperpolymath/ochrance/pkg/logging"
	"github.com/hyperpolymath/ochrance/pkg/manifest"
	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/repair"
	"github.com/hyperpolymath/ochrance/pkg/verifymode"
	"github.com/hyperpolymath/ochrance/pkg/witness"
)

// CycleState names the state-machine position a verify/repair cycle is in
// (spec.md section 4.6, State machine).
type CycleState string

const (
	CycleQuiescent     CycleState = "quiescent"
	CycleAttestedOK    CycleState = "attested-ok"
	CycleRemediable    CycleState = "remediable"
	CycleFatal         CycleState = "fatal"
	CycleRepairPending CycleState = "repair-pending"
	CycleRepaired      CycleState = "repaired"
	CycleRepairFailed  CycleState = "repair-failed"
)

// remediableQueries are the diagnostic causes the state machine treats as
// Remediable rather than Fatal (spec.md section 4.6, Token discipline: "a
// token is produced exactly when the verifier detects a remediable
// failure (hash mismatch, metadata drift, recoverable I/O error)").
var remediableQueries = map[diagnostic.Query]bool{
	diagnostic.QueryHashMismatch:       true,
	diagnostic.QueryInvariantViolation: true,
	diagnostic.QueryIOFailure:          true,
}

// CycleResult is the outcome of a verify, verify-or-repair, or re-verify
// call.
type CycleResult struct {
	State      CycleState
	Witness    *witness.Witness
	Diagnostic *diagnostic.Diagnostic
	Repair     *repair.Result
}

// VerifiedSubsystem is the filesystem subsystem façade. It owns the
// exclusive guard covering a state's verify/repair window; construct one
// per managed filesystem.
type VerifiedSubsystem struct {
	mu        sync.Mutex
	verifier  *fsverify.Verifier
	repairer  *repair.Engine
	oracle    oracle.Oracle
	algorithm oracle.Algorithm
	logger    *logging.Logger
}

// Config configures a VerifiedSubsystem.
type Config struct {
	Oracle    oracle.Oracle
	Algorithm oracle.Algorithm
	Logger    *logging.Logger
}

// New constructs a VerifiedSubsystem.
func New(cfg Config) *VerifiedSubsystem {
	if cfg.Oracle == nil {
		cfg.Oracle = oracle.NewDefault()
	}
	return &VerifiedSubsystem{
		verifier:  fsverify.New(cfg.Oracle),
		repairer:  repair.New(cfg.Oracle, cfg.Algorithm, cfg.Logger),
		oracle:    cfg.Oracle,
		algorithm: cfg.Algorithm,
		logger:    cfg.Logger,
	}
}

// Verify is the pure, deterministic capability: verify(mode, state,
// manifest) -> Result<Witness, Diagnostic>.
func (s *VerifiedSubsystem) Verify(mode verifymode.Mode, state *block.FSState, m *manifest.FSManifest) CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifyLocked(mode, state, m)
}

func (s *VerifiedSubsystem) verifyLocked(mode verifymode.Mode, state *block.FSState, m *manifest.FSManifest) CycleResult {
	w, diags := s.verifier.Verify(mode, state, m)
	if len(diags) == 0 {
		return CycleResult{State: CycleAttestedOK, Witness: w}
	}

	worst := diags[0]
	for _, d := range diags {
		if worst.Priority.Less(d.Priority) {
			worst = d
		}
	}
	if remediableQueries[worst.Query] {
		return CycleResult{State: CycleRemediable, Diagnostic: worst}
	}
	return CycleResult{State: CycleFatal, Diagnostic: worst}
}

// Repair is the effectful capability: repair(corrupt, snapshot) ->
// Effect<State, Diagnostic>. Repair acquires the exclusive guard itself;
// callers invoking it outside VerifyOrRepair must not also be holding a
// concurrent Verify call on the same state.
func (s *VerifiedSubsystem) Repair(token *repair.Token, state *block.FSState, snapshot repair.Snapshot) CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repairLocked(token, state, snapshot)
}

func (s *VerifiedSubsystem) repairLocked(token *repair.Token, state *block.FSState, snapshot repair.Snapshot) CycleResult {
	result := s.repairer.Apply(token, state, snapshot)
	if !result.OK {
		return CycleResult{State: CycleRepairFailed, Diagnostic: result.Diagnostic, Repair: &result}
	}
	return CycleResult{State: CycleRepaired, Repair: &result}
}

// Attest is the effectful capability: attest(state) -> Effect<Manifest>.
// It produces a fresh FSManifest describing state's current attestable
// shape, to be written out as an A2ML document by the caller.
func (s *VerifiedSubsystem) Attest(state *block.FSState, formatVersion string) (*manifest.FSManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return manifest.New(s.oracle, s.algorithm, state.LeafDigests(), formatVersion)
}

// VerifyOrRepair attempts verification; on a Remediable failure it issues
// and applies a single repair token against snapshot, then re-verifies
// once. The entire window is covered by one lock acquisition, satisfying
// the exclusive-guard requirement (spec.md section 4.7, 5).
func (s *VerifiedSubsystem) VerifyOrRepair(mode verifymode.Mode, state *block.FSState, m *manifest.FSManifest, snapshot repair.Snapshot, action repair.Action) CycleResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	first := s.verifyLocked(mode, state, m)
	if first.State != CycleRemediable {
		return first
	}

	token := repair.Issue(action)
	repaired := s.repairLocked(token, state, snapshot)
	if repaired.State != CycleRepaired {
		if s.logger != nil && repaired.Diagnostic != nil {
			s.logger.WithDiagnostic(repaired.Diagnostic).Error("verify-or-repair cycle failed",
				logging.Field{Key: "mode", Value: mode.String()})
		}
		return repaired
	}
	applied := *repaired.Repair

	second := s.verifyLocked(mode, state, m)
	if second.State != CycleAttestedOK {
		d := second.Diagnostic
		if d == nil {
			d = diagnostic.New(diagnostic.QueryRepairFailed, diagnostic.PriorityCritical,
				diagnostic.FullSubsystem("filesystem"), "re-verification failed after repair")
		}
		return CycleResult{State: CycleFatal, Diagnostic: d, Repair: &applied}
	}

	if s.logger != nil {
		s.logger.Info("verify-or-repair cycle completed",
			logging.Field{Key: "mode", Value: mode.String()},
			logging.Field{Key: "blocks_restored", Value: applied.BlocksRestored},
			logging.Field{Key: "completed_at", Value: time.Now().Format(time.RFC3339)},
		)
	}
	return CycleResult{State: CycleAttestedOK, Witness: second.Witness, Repair: &applied}
}
