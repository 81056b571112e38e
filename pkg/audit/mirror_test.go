package audit

import (
	"context"
	"testing"
	"time"
)

func TestDisabledMirrorIsNoOp(t *testing.T) {
	m, err := New(context.Background(), &Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.IsEnabled() {
		t.Fatal("expected mirror to be disabled")
	}

	err = m.Mirror(context.Background(), Entry{
		SubsystemTag: "fs0",
		CycleID:      "cycle-1",
		Outcome:      "attested-ok",
		Timestamp:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Mirror on disabled mirror should be a no-op, got error: %v", err)
	}
}

func TestEnabledMirrorRequiresProjectID(t *testing.T) {
	_, err := New(context.Background(), &Config{Enabled: true})
	if err == nil {
		t.Fatal("expected error when enabling the mirror without a project ID")
	}
}

func TestDefaultConfigDisabledByDefault(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Fatal("expected DefaultConfig to be disabled unless OCHRANCE_AUDIT_MIRROR_ENABLED is set")
	}
}

func TestCloseOnDisabledMirrorIsSafe(t *testing.T) {
	m, err := New(context.Background(), &Config{Enabled: false})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close on disabled mirror should succeed, got: %v", err)
	}
}
