// Copyright 2025 Ochránce Project
//
// Package store implements Ochránce's two persistence backends: a
// Postgres-backed AttestationStore holding the per-cycle A2ML document
// history (spec.md section 6, Persisted state layout — "consecutive
// documents form a hash chain via the optional previous_root field"), and
// a SQLite-backed SnapshotStore holding content-addressed repair
// snapshots.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/google/uuid"
)

// AttestationRecord is one persisted A2ML document in the chain.
type AttestationRecord struct {
	ID           uuid.UUID
	SubsystemTag string
	Document     string
	Root         string
	PreviousRoot string
	ChainLength  int64
	CreatedAt    time.Time
}

// AttestationStore persists attestation documents keyed by subsystem,
// chained by previous_root, in Postgres.
type AttestationStore struct {
	db *sql.DB
}

// OpenAttestationStore opens a Postgres connection pool and verifies
// connectivity.
func OpenAttestationStore(ctx context.Context, databaseURL string, maxOpenConns, maxIdleConns int) (*AttestationStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("store: attestation database URL must not be empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: opening attestation database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: pinging attestation database: %w", err)
	}

	return &AttestationStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *AttestationStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const createAttestationsTable = `
CREATE TABLE IF NOT EXISTS attestation_documents (
	id            UUID PRIMARY KEY,
	subsystem_tag TEXT NOT NULL,
	document      TEXT NOT NULL,
	root          TEXT NOT NULL,
	previous_root TEXT NOT NULL DEFAULT '',
	chain_length  BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the attestation_documents table if it does not
// already exist.
func (s *AttestationStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createAttestationsTable)
	if err != nil {
		return fmt.Errorf("store: creating attestation_documents table: %w", err)
	}
	return nil
}

// Latest returns the most recently inserted record for subsystemTag, or
// (nil, nil) if none exists yet.
func (s *AttestationStore) Latest(ctx context.Context, subsystemTag string) (*AttestationRecord, error) {
	const query = `
		SELECT id, subsystem_tag, document, root, previous_root, chain_length, created_at
		FROM attestation_documents
		WHERE subsystem_tag = $1
		ORDER BY chain_length DESC
		LIMIT 1`

	var rec AttestationRecord
	err := s.db.QueryRowContext(ctx, query, subsystemTag).Scan(
		&rec.ID, &rec.SubsystemTag, &rec.Document, &rec.Root, &rec.PreviousRoot, &rec.ChainLength, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetching latest attestation for %s: %w", subsystemTag, err)
	}
	return &rec, nil
}

// Append inserts a new attestation document, chaining it off the current
// latest record for subsystemTag (previous_root := latest.root,
// chain_length := latest.chain_length + 1).
func (s *AttestationStore) Append(ctx context.Context, subsystemTag, document, root string) (*AttestationRecord, error) {
	latest, err := s.Latest(ctx, subsystemTag)
	if err != nil {
		return nil, err
	}

	rec := AttestationRecord{
		ID:           uuid.New(),
		SubsystemTag: subsystemTag,
		Document:     document,
		Root:         root,
		ChainLength:  1,
	}
	if latest != nil {
		rec.PreviousRoot = latest.Root
		rec.ChainLength = latest.ChainLength + 1
	}

	const insert = `
		INSERT INTO attestation_documents (id, subsystem_tag, document, root, previous_root, chain_length, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING created_at`

	err = s.db.QueryRowContext(ctx, insert,
		rec.ID, rec.SubsystemTag, rec.Document, rec.Root, rec.PreviousRoot, rec.ChainLength,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: appending attestation document: %w", err)
	}
	return &rec, nil
}

// History returns up to limit records for subsystemTag, most recent
// first, for audit review or chain-prefix verification.
func (s *AttestationStore) History(ctx context.Context, subsystemTag string, limit int) ([]AttestationRecord, error) {
	const query = `
		SELECT id, subsystem_tag, document, root, previous_root, chain_length, created_at
		FROM attestation_documents
		WHERE subsystem_tag = $1
		ORDER BY chain_length DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, subsystemTag, limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing attestation history for %s: %w", subsystemTag, err)
	}
	defer rows.Close()

	var out []AttestationRecord
	for rows.Next() {
		var rec AttestationRecord
		if err := rows.Scan(&rec.ID, &rec.SubsystemTag, &rec.Document, &rec.Root, &rec.PreviousRoot, &rec.ChainLength, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scanning attestation row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
