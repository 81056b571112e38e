// Copyright 2025 Ochránce Project
//
// Package config loads the VerifiedSubsystem daemon's configuration from
// environment variables, with an optional YAML file overlay applied on top
// (spec.md section 6: cmd/ochranced, the optional HTTP façade).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Ochránce verification daemon.
type Config struct {
	// Server configuration
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// Verification defaults
	DefaultAlgorithm string `yaml:"default_algorithm"` // sha256, sha384, sha512, blake3
	DefaultMode      string `yaml:"default_mode"`      // lax, checked, attested
	SubsystemTag     string `yaml:"subsystem_tag"`

	// Attestation persistence (pkg/store.AttestationStore, Postgres)
	AttestationDatabaseURL string `yaml:"attestation_database_url"`
	AttestationMaxConns    int    `yaml:"attestation_max_conns"`
	AttestationMaxIdle     int    `yaml:"attestation_max_idle"`

	// Snapshot persistence (pkg/store.SnapshotStore, SQLite)
	SnapshotPath            string        `yaml:"snapshot_path"`
	SnapshotMaxConns        int           `yaml:"snapshot_max_conns"`
	SnapshotBusyTimeout     time.Duration `yaml:"snapshot_busy_timeout"`
	SnapshotCacheSizeKB     int           `yaml:"snapshot_cache_size_kb"`
	SnapshotJournalMode     string        `yaml:"snapshot_journal_mode"`
	SnapshotSynchronousMode string        `yaml:"snapshot_synchronous_mode"`

	// Audit mirror (pkg/audit, disabled by default)
	AuditMirrorEnabled   bool   `yaml:"audit_mirror_enabled"`
	FirebaseProjectID    string `yaml:"firebase_project_id"`
	FirebaseCredentials  string `yaml:"firebase_credentials_file"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from environment variables, applying sane,
// non-production defaults everywhere a variable is unset.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnv("OCHRANCE_LISTEN_ADDR", "0.0.0.0:8080"),
		MetricsAddr: getEnv("OCHRANCE_METRICS_ADDR", "0.0.0.0:9090"),

		DefaultAlgorithm: getEnv("OCHRANCE_DEFAULT_ALGORITHM", "sha256"),
		DefaultMode:      getEnv("OCHRANCE_DEFAULT_MODE", "checked"),
		SubsystemTag:     getEnv("OCHRANCE_SUBSYSTEM_TAG", "default"),

		AttestationDatabaseURL: getEnv("OCHRANCE_ATTESTATION_DATABASE_URL", ""),
		AttestationMaxConns:    getEnvInt("OCHRANCE_ATTESTATION_MAX_CONNS", 25),
		AttestationMaxIdle:     getEnvInt("OCHRANCE_ATTESTATION_MAX_IDLE", 5),

		SnapshotPath:             getEnv("OCHRANCE_SNAPSHOT_PATH", "ochrance-snapshots.db"),
		SnapshotMaxConns:         getEnvInt("OCHRANCE_SNAPSHOT_MAX_CONNS", 10),
		SnapshotBusyTimeout:      getEnvDuration("OCHRANCE_SNAPSHOT_BUSY_TIMEOUT", 5*time.Second),
		SnapshotCacheSizeKB:      getEnvInt("OCHRANCE_SNAPSHOT_CACHE_SIZE_KB", 10000),
		SnapshotJournalMode:      getEnv("OCHRANCE_SNAPSHOT_JOURNAL_MODE", "WAL"),
		SnapshotSynchronousMode:  getEnv("OCHRANCE_SNAPSHOT_SYNCHRONOUS_MODE", "NORMAL"),

		AuditMirrorEnabled:  getEnvBool("OCHRANCE_AUDIT_MIRROR_ENABLED", false),
		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		LogLevel:  getEnv("OCHRANCE_LOG_LEVEL", "info"),
		LogFormat: getEnv("OCHRANCE_LOG_FORMAT", "text"),
	}
	return cfg, nil
}

// LoadWithOverlay calls Load and then applies the YAML file at path on top
// of the environment-derived defaults, if path is non-empty. Fields absent
// from the YAML document are left at their environment-derived value.
func LoadWithOverlay(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading overlay %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing overlay %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that configuration required to run cmd/ochranced is
// present and internally consistent.
func (c *Config) Validate() error {
	var errors []string

	switch c.DefaultAlgorithm {
	case "sha256", "sha384", "sha512", "blake3":
	default:
		errors = append(errors, fmt.Sprintf("OCHRANCE_DEFAULT_ALGORITHM %q is not one of sha256, sha384, sha512, blake3", c.DefaultAlgorithm))
	}

	switch c.DefaultMode {
	case "lax", "checked", "attested":
	default:
		errors = append(errors, fmt.Sprintf("OCHRANCE_DEFAULT_MODE %q is not one of lax, checked, attested", c.DefaultMode))
	}

	if c.AuditMirrorEnabled && c.FirebaseProjectID == "" {
		errors = append(errors, "FIREBASE_PROJECT_ID is required when OCHRANCE_AUDIT_MIRROR_ENABLED is true")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
