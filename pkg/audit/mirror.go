// Copyright 2025 Ochránce Project
//
// Package audit implements an optional Firestore mirror of A2ML @audit
// entries and attestation-cycle summaries, for deployments that want a
// durable off-host copy of the audit trail independent of the local
// attestation store (spec.md section 5, Ordering guarantees: audit log
// appends are externally visible only after the cycle's terminal state is
// reached — the mirror is written at that same point, never mid-cycle).
package audit

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/hyperpolymath/ochrance/pkg/logging"
)

// Entry is one mirrored audit-log record: a repair or verification cycle
// outcome plus the q/p/z diagnostic that produced it, if any.
type Entry struct {
	SubsystemTag string
	CycleID      string
	Outcome      string
	Query        string
	Priority     string
	Zone         string
	Timestamp    time.Time
}

// Mirror wraps the Firestore client used to durably copy audit entries
// off-host. When disabled (the default), every method is a no-op.
type Mirror struct {
	app       *firebase.App
	firestore *gcpfirestore.Client
	projectID string
	enabled   bool
	logger    *logging.Logger
	mu        sync.RWMutex
}

// Config configures the audit Mirror.
type Config struct {
	ProjectID       string
	CredentialsFile string
	Enabled         bool
	Logger          *logging.Logger
}

// DefaultConfig returns a Config populated from environment variables,
// disabled unless OCHRANCE_AUDIT_MIRROR_ENABLED is set to a truthy value.
func DefaultConfig() *Config {
	return &Config{
		ProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		Enabled:         envBool("OCHRANCE_AUDIT_MIRROR_ENABLED", false),
	}
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// New constructs a Mirror. When cfg.Enabled is false, New returns a
// no-op mirror without touching the network.
func New(ctx context.Context, cfg *Config) (*Mirror, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	m := &Mirror{projectID: cfg.ProjectID, enabled: cfg.Enabled, logger: cfg.Logger}

	if !cfg.Enabled {
		if m.logger != nil {
			m.logger.Info("audit mirror disabled, running in no-op mode")
		}
		return m, nil
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("audit: FIREBASE_PROJECT_ID is required when the mirror is enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("audit: initializing Firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: creating Firestore client: %w", err)
	}

	m.app = app
	m.firestore = fsClient
	if m.logger != nil {
		m.logger.Info("audit mirror initialized", logging.Field{Key: "project_id", Value: cfg.ProjectID})
	}
	return m, nil
}

// IsEnabled reports whether the mirror performs real writes.
func (m *Mirror) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Close releases the underlying Firestore client, if any.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firestore != nil {
		return m.firestore.Close()
	}
	return nil
}

// Mirror writes one audit entry to Firestore at
// subsystems/{subsystemTag}/auditEntries/{cycleID}. A disabled mirror logs
// and returns nil.
func (m *Mirror) Mirror(ctx context.Context, e Entry) error {
	if !m.IsEnabled() {
		if m.logger != nil {
			m.logger.Debug("audit mirror disabled, skipping entry",
				logging.Field{Key: "subsystem", Value: e.SubsystemTag},
				logging.Field{Key: "cycle_id", Value: e.CycleID})
		}
		return nil
	}
	if m.firestore == nil {
		return fmt.Errorf("audit: mirror enabled but Firestore client is not initialized")
	}

	docPath := fmt.Sprintf("subsystems/%s/auditEntries/%s", e.SubsystemTag, e.CycleID)
	_, err := m.firestore.Doc(docPath).Set(ctx, map[string]interface{}{
		"outcome":   e.Outcome,
		"query":     e.Query,
		"priority":  e.Priority,
		"zone":      e.Zone,
		"timestamp": e.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("audit: mirroring entry for cycle %s: %w", e.CycleID, err)
	}
	return nil
}
