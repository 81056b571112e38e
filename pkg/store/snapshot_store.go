// Copyright 2025 Ochránce Project

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
	"github.com/hyperpolymath/ochrance/pkg/repair"
)

// SnapshotConfig configures the SQLite-backed content-addressed snapshot
// store.
type SnapshotConfig struct {
	Path            string
	MaxConnections  int
	BusyTimeout     time.Duration
	CacheSizeKB     int
	JournalMode     string
	SynchronousMode string
}

// DefaultSnapshotConfig returns a production-ready configuration.
func DefaultSnapshotConfig() *SnapshotConfig {
	return &SnapshotConfig{
		Path:            "ochrance-snapshots.db",
		MaxConnections:  10,
		BusyTimeout:     5 * time.Second,
		CacheSizeKB:     10000,
		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
	}
}

// SnapshotStore persists repair snapshots in a pure-Go SQLite database,
// content-addressed by their payload digest (spec.md section 6, Persisted
// state layout).
type SnapshotStore struct {
	db *sql.DB
}

// OpenSnapshotStore opens (creating if necessary) a SQLite-backed
// snapshot store.
func OpenSnapshotStore(cfg *SnapshotConfig) (*SnapshotStore, error) {
	if cfg == nil {
		cfg = DefaultSnapshotConfig()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: opening snapshot database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(time.Hour)

	if err := configurePragmas(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: configuring snapshot database: %w", err)
	}

	if err := initSnapshotSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing snapshot schema: %w", err)
	}

	return &SnapshotStore{db: db}, nil
}

func configurePragmas(db *sql.DB, cfg *SnapshotConfig) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB),
		fmt.Sprintf("PRAGMA journal_mode = %s", cfg.JournalMode),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.SynchronousMode),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}
	return nil
}

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS snapshots (
	digest     TEXT PRIMARY KEY,
	algorithm  TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

func initSnapshotSchema(db *sql.DB) error {
	_, err := db.Exec(createSnapshotsTable)
	return err
}

// Close closes the underlying database handle.
func (s *SnapshotStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a snapshot, content-addressed by its digest.
func (s *SnapshotStore) Put(ctx context.Context, snap repair.Snapshot) error {
	const query = `
		INSERT INTO snapshots (digest, algorithm, payload)
		VALUES (?, ?, ?)
		ON CONFLICT(digest) DO UPDATE SET payload = excluded.payload`
	_, err := s.db.ExecContext(ctx, query, snap.Digest.Hex(), string(snap.Digest.Algorithm), snap.Payload)
	if err != nil {
		return fmt.Errorf("store: storing snapshot %s: %w", snap.Digest.Hex(), err)
	}
	return nil
}

// Get retrieves a snapshot by its digest, or an error if not present.
func (s *SnapshotStore) Get(ctx context.Context, digest oracle.Digest) (repair.Snapshot, error) {
	const query = `SELECT payload FROM snapshots WHERE digest = ? AND algorithm = ?`
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, digest.Hex(), string(digest.Algorithm)).Scan(&payload)
	if err == sql.ErrNoRows {
		return repair.Snapshot{}, fmt.Errorf("store: no snapshot with digest %s", digest.Hex())
	}
	if err != nil {
		return repair.Snapshot{}, fmt.Errorf("store: fetching snapshot %s: %w", digest.Hex(), err)
	}
	return repair.Snapshot{Digest: digest, Payload: payload}, nil
}

// Delete removes a snapshot by digest; used by retention sweeps.
func (s *SnapshotStore) Delete(ctx context.Context, digest oracle.Digest) error {
	const query = `DELETE FROM snapshots WHERE digest = ? AND algorithm = ?`
	_, err := s.db.ExecContext(ctx, query, digest.Hex(), string(digest.Algorithm))
	if err != nil {
		return fmt.Errorf("store: deleting snapshot %s: %w", digest.Hex(), err)
	}
	return nil
}
