// Copyright 2025 Ochránce Project
//
// Package repair implements the Ephapax single-use repair token, the
// RepairAction set, and the RepairEngine that applies a remediation to a
// corrupt FSState from a content-addressed snapshot (spec.md section 4.6).
package repair

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// ActionKind enumerates the remediations a token may carry.
type ActionKind int

const (
	ActionRestoreBlock ActionKind = iota
	ActionRewriteMetadata
	ActionQuarantineFile
	ActionRebuildIndex
)

// Action is the remediation a token authorises: restore-block(i),
// rewrite-metadata(p), quarantine-file(p), or rebuild-index.
type Action struct {
	Kind  ActionKind
	Index int
	Path  string
}

func RestoreBlock(i int) Action      { return Action{Kind: ActionRestoreBlock, Index: i} }
func RewriteMetadata(p string) Action { return Action{Kind: ActionRewriteMetadata, Path: p} }
func QuarantineFile(p string) Action  { return Action{Kind: ActionQuarantineFile, Path: p} }
func RebuildIndex() Action            { return Action{Kind: ActionRebuildIndex} }

// Token is produced exactly when the verifier detects a remediable failure
// and must be consumed exactly once by a repair application (spec.md
// section 4.6, Token discipline). It is a single-owner handle: Consume
// sets an atomic guard so double consumption returns an error instead of
// silently repairing twice or reusing stale state.
type Token struct {
	id       uuid.UUID
	action   Action
	consumed atomic.Bool
}

// Issue mints a token for the given action. Issue is the only constructor;
// there is no zero-value token.
func Issue(action Action) *Token {
	return &Token{id: uuid.New(), action: action}
}

// ID returns the token's identity. Engine.Apply records it in its
// "repair applied" log entry when a repair succeeds.
func (t *Token) ID() uuid.UUID { return t.id }

// Action returns the remediation this token authorises.
func (t *Token) Action() Action { return t.action }

// Consume marks the token used, returning an error if it already was.
// Callers MUST call Consume exactly once, at the point the repair is
// applied, before performing the mutation — this makes double-repair and
// skipped-repair both detectable at the boundary rather than silent.
func (t *Token) Consume() error {
	if !t.consumed.CompareAndSwap(false, true) {
		return fmt.Errorf("repair: token %s already consumed", t.id)
	}
	return nil
}

// Consumed reports whether the token has already been used.
func (t *Token) Consumed() bool { return t.consumed.Load() }
