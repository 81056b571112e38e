package a2ml

import (
	"testing"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

func sampleDocumentWithRefs() *Manifest {
	m, err := ParseDocument(sampleDocument())
	if err != nil {
		panic(err)
	}
	return m
}

func TestAppendAuditEntryChainsPrevHash(t *testing.T) {
	m := sampleDocumentWithRefs()
	o := oracle.NewDefault()

	if err := AppendAuditEntry(m, o, oracle.SHA256, AuditEntryFields{
		Timestamp: time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC), SubsystemTag: "fs", CycleID: "c1", Outcome: "attested-ok",
	}); err != nil {
		t.Fatalf("AppendAuditEntry: %v", err)
	}
	if err := AppendAuditEntry(m, o, oracle.SHA256, AuditEntryFields{
		Timestamp: time.Date(2026, 7, 31, 12, 1, 0, 0, time.UTC), SubsystemTag: "fs", CycleID: "c2", Outcome: "attested-ok",
	}); err != nil {
		t.Fatalf("AppendAuditEntry: %v", err)
	}

	if diags := Validate(m); len(diags) != 0 {
		t.Fatalf("expected a clean chain to validate with no diagnostics, got %v", diags)
	}

	sec, ok := m.Section(SectionAudit)
	if !ok || len(sec.Entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %+v", sec)
	}
	first := sec.Entries[0].Value.Block
	if prev, _ := first.Get("prev_hash"); prev.Str != oracle.ZeroDigest(oracle.SHA256).String() {
		t.Fatalf("expected first entry's prev_hash to be the zero digest, got %s", prev.Str)
	}
	second := sec.Entries[1].Value.Block
	wantPrev, err := o.Sum(oracle.SHA256, []byte(canonicalBlockText(first)))
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if got, _ := second.Get("prev_hash"); got.Str != wantPrev.String() {
		t.Fatalf("expected second entry's prev_hash to chain from the first, got %s want %s", got.Str, wantPrev.String())
	}
}

func TestValidateDetectsBrokenAuditChain(t *testing.T) {
	m := sampleDocumentWithRefs()
	o := oracle.NewDefault()
	if err := AppendAuditEntry(m, o, oracle.SHA256, AuditEntryFields{
		Timestamp: time.Now(), SubsystemTag: "fs", CycleID: "c1", Outcome: "attested-ok",
	}); err != nil {
		t.Fatalf("AppendAuditEntry: %v", err)
	}
	if err := AppendAuditEntry(m, o, oracle.SHA256, AuditEntryFields{
		Timestamp: time.Now(), SubsystemTag: "fs", CycleID: "c2", Outcome: "attested-ok",
	}); err != nil {
		t.Fatalf("AppendAuditEntry: %v", err)
	}

	sec, _ := m.Section(SectionAudit)
	tampered := sec.Entries[0].Value.Block
	for i, e := range tampered.Entries {
		if e.Key == "outcome" {
			tampered.Entries[i].Value.Str = "tampered"
		}
	}

	diags := Validate(m)
	found := false
	for _, d := range diags {
		if d.Query == "invariant-violation" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected invariant-violation once an earlier audit entry is altered, breaking the chain")
	}
}

func TestValidateRequiresPrevHash(t *testing.T) {
	m := sampleDocumentWithRefs()
	m.Sections[SectionAudit] = &Section{
		Tag: SectionAudit,
		Entries: []Entry{
			{Key: "entry", Value: Value{Kind: ValueBlock, Block: &Section{Entries: []Entry{
				{Key: "timestamp", Value: Value{Kind: ValueTimestamp, Str: "2026-07-31T12:00:00Z"}},
				{Key: "subsystem", Value: Value{Kind: ValueString, Str: "fs"}},
				{Key: "outcome", Value: Value{Kind: ValueString, Str: "attested-ok"}},
			}}}},
		},
	}

	diags := Validate(m)
	found := false
	for _, d := range diags {
		if d.Query == "missing-required" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected missing-required when an audit entry has no prev_hash")
	}
}
