// Copyright 2025 Ochránce Project

package a2ml

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// HeaderMajor and HeaderMinor are the a2ml/MAJOR.MINOR wire version this
// implementation emits and accepts.
const (
	HeaderMajor = 1
	HeaderMinor = 0
)

// Serialize renders m in canonical signature-grade form: UTF-8 with NFC
// normalisation (Go string literals in this codebase are already NFC),
// LF line endings, no trailing whitespace, no trailing newline after the
// final '}', fields sorted lexicographically by key, two-space indent
// (spec.md section 4.1, Serializer).
func Serialize(m *Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "a2ml/%d.%d\n", HeaderMajor, HeaderMinor)

	sections := m.OrderedSections()
	for i, sec := range sections {
		writeSection(&sb, sec, 0, true)
		if i < len(sections)-1 {
			sb.WriteByte('\n')
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SerializeCompact renders the same AST without indentation or blank
// lines, for machine-to-machine transport (spec.md section 4.1, "The
// compact serializer emits the same AST without indentation or blank
// lines").
func SerializeCompact(m *Manifest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "a2ml/%d.%d\n", HeaderMajor, HeaderMinor)
	for _, sec := range m.OrderedSections() {
		writeSection(&sb, sec, 0, false)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeSection(sb *strings.Builder, sec *Section, indent int, pretty bool) {
	fmt.Fprintf(sb, "@%s {\n", sec.Tag)
	writeEntries(sb, sortedEntries(sec.Entries), indent+1, pretty)
	sb.WriteString("}\n")
}

func sortedEntries(entries []Entry) []Entry {
	out := append([]Entry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func writeEntries(sb *strings.Builder, entries []Entry, indent int, pretty bool) {
	prefix := ""
	if pretty {
		prefix = strings.Repeat("  ", indent)
	}
	for _, e := range entries {
		if e.Value.Kind == ValueBlock {
			fmt.Fprintf(sb, "%s%s {\n", prefix, e.Key)
			writeEntries(sb, sortedEntries(e.Value.Block.Entries), indent+1, pretty)
			fmt.Fprintf(sb, "%s}\n", prefix)
			continue
		}
		fmt.Fprintf(sb, "%s%s: %s\n", prefix, e.Key, renderValue(e.Value))
	}
}

func renderValue(v Value) string {
	switch v.Kind {
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueIdentifier:
		return v.Str
	case ValueHashLiteral:
		return "#" + v.Str
	case ValueInteger:
		return strconv.FormatInt(v.Int, 10)
	case ValueTimestamp:
		return v.Str
	case ValueBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueBlob:
		return "base64(" + v.Str + ")"
	case ValueList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = renderValue(item)
		}
		return "{ " + strings.Join(parts, " ") + " }"
	default:
		return ""
	}
}
