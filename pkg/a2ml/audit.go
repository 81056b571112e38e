// Copyright 2025 Ochránce Project

package a2ml

import (
	"strings"
	"time"

	"github.com/hyperpolymath/ochrance/pkg/oracle"
)

// AuditEntryFields are the caller-supplied facts of a single audit entry.
// prev_hash is computed by AppendAuditEntry, never supplied by the caller.
type AuditEntryFields struct {
	Timestamp    time.Time
	SubsystemTag string
	CycleID      string
	Outcome      string
}

// AppendAuditEntry appends a chained entry to m's @audit section, creating
// the section on the first call. Each entry's prev_hash is the digest of
// the immediately preceding entry's canonical text (the zero digest for the
// first entry), so a reader can independently detect truncation or
// reordering of historical entries rather than trust it by assertion alone
// (spec.md section 5, prefix-stable).
func AppendAuditEntry(m *Manifest, o oracle.Oracle, algorithm oracle.Algorithm, fields AuditEntryFields) error {
	sec, ok := m.Section(SectionAudit)
	if !ok {
		sec = &Section{Tag: SectionAudit}
		if m.Sections == nil {
			m.Sections = make(map[SectionTag]*Section)
		}
		m.Sections[SectionAudit] = sec
	}

	prevHash := oracle.ZeroDigest(algorithm).String()
	if n := len(sec.Entries); n > 0 {
		if last := sec.Entries[n-1]; last.Value.Kind == ValueBlock {
			digest, err := o.Sum(algorithm, []byte(canonicalBlockText(last.Value.Block)))
			if err != nil {
				return err
			}
			prevHash = digest.String()
		}
	}

	entry := &Section{
		Tag: SectionAudit,
		Entries: []Entry{
			{Key: "timestamp", Value: Value{Kind: ValueTimestamp, Str: fields.Timestamp.UTC().Format(time.RFC3339)}},
			{Key: "subsystem", Value: Value{Kind: ValueString, Str: fields.SubsystemTag}},
			{Key: "cycle_id", Value: Value{Kind: ValueString, Str: fields.CycleID}},
			{Key: "outcome", Value: Value{Kind: ValueString, Str: fields.Outcome}},
			{Key: "prev_hash", Value: Value{Kind: ValueHashLiteral, Str: prevHash}},
		},
	}
	sec.Entries = append(sec.Entries, Entry{Key: "entry", Value: Value{Kind: ValueBlock, Block: entry}})
	return nil
}

// canonicalBlockText renders a nested entry block's fields, sorted and
// unindented, as the exact byte sequence prev_hash is computed over.
func canonicalBlockText(sec *Section) string {
	var sb strings.Builder
	writeEntries(&sb, sortedEntries(sec.Entries), 0, false)
	return sb.String()
}
