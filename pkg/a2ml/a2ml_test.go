package a2ml

import (
	"strings"
	"testing"
)

func sampleDocument() string {
	return `a2ml/1.0
@manifest {
  id: "fs-01"
  version: "1"
  producer: "ochranced"
  subsystem: "filesystem"
  produced_at: 2026-07-31T12:00:00Z
}
@refs {
  algorithm: sha256
  merkle_root: #aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899
  block_count: 4
  tree_depth: 2
}
`
}

func TestParseDocumentRoundTrip(t *testing.T) {
	m, err := ParseDocument(sampleDocument())
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	sec, ok := m.Section(SectionManifest)
	if !ok {
		t.Fatal("expected @manifest section")
	}
	idVal, ok := sec.Get("id")
	if !ok || idVal.Str != "fs-01" {
		t.Fatalf("expected manifest.id = fs-01, got %+v", idVal)
	}

	out := Serialize(m)
	m2, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("re-parsing serialized document: %v", err)
	}
	out2 := Serialize(m2)
	if out != out2 {
		t.Fatalf("serialize not stable across round-trip:\n%s\n---\n%s", out, out2)
	}
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := Lex(`@manifest { id: "unterminated
}`)
	if err == nil {
		t.Fatal("expected unterminated-string error")
	}
	lerr, ok := err.(*LexError)
	if !ok {
		t.Fatalf("expected *LexError, got %T", err)
	}
	if lerr.Diagnostic.Query != "unterminated-string" {
		t.Fatalf("expected unterminated-string, got %s", lerr.Diagnostic.Query)
	}
}

func TestLexMalformedHash(t *testing.T) {
	_, err := Lex(`@manifest { root: # }`)
	if err == nil {
		t.Fatal("expected malformed-hash error")
	}
}

func TestLexUnknownKeyword(t *testing.T) {
	_, err := Lex(`@bogus { }`)
	if err == nil {
		t.Fatal("expected unknown-keyword error")
	}
}

func TestParseMissingManifest(t *testing.T) {
	tokens, err := Lex(`@refs { algorithm: sha256 }`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	_, err = Parse(tokens)
	if err == nil {
		t.Fatal("expected missing-required error for absent @manifest")
	}
}

func TestParseDuplicateSection(t *testing.T) {
	tokens, err := Lex(`@manifest { id: "x" } @manifest { id: "y" }`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	_, err = Parse(tokens)
	if err == nil {
		t.Fatal("expected duplicate-section error")
	}
}

func TestParseNestingExceeded(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("@manifest { ")
	for i := 0; i < MaxNestingDepth+2; i++ {
		sb.WriteString("a { ")
	}
	for i := 0; i < MaxNestingDepth+2; i++ {
		sb.WriteString("} ")
	}
	sb.WriteString("}")

	tokens, err := Lex(sb.String())
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	_, err = Parse(tokens)
	if err == nil {
		t.Fatal("expected nesting-exceeded error")
	}
}

func TestValidateMissingRequired(t *testing.T) {
	m, err := ParseDocument("a2ml/1.0\n@manifest {\n  id: \"x\"\n}\n")
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	diags := Validate(m)
	if len(diags) == 0 {
		t.Fatal("expected validation errors for incomplete @manifest")
	}
}

func TestValidatePolicyTotals(t *testing.T) {
	src := "a2ml/1.0\n" +
		"@manifest {\n  id: \"x\"\n  version: \"1\"\n  producer: \"p\"\n  subsystem: \"s\"\n  produced_at: 2026-07-31T12:00:00Z\n}\n" +
		"@policy {\n  passed: 2\n  failed: 1\n  skipped: 0\n  total_policies: 4\n}\n"
	m, err := ParseDocument(src)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	diags := Validate(m)
	found := false
	for _, d := range diags {
		if d.Query == "invariant-violation" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected invariant-violation for mismatched policy totals")
	}
}

func TestSerializeCompactHasNoIndentation(t *testing.T) {
	m, err := ParseDocument(sampleDocument())
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	compact := SerializeCompact(m)
	if strings.Contains(compact, "  ") {
		t.Fatal("compact serializer must not indent")
	}
}

func TestBlobValue(t *testing.T) {
	tokens, err := Lex(`@attestation { proof: base64(QUJD) }`)
	if err != nil {
		t.Fatalf("Lex: %v", err)
	}
	if len(tokens) < 3 || tokens[len(tokens)-3].Kind != TokenBlob {
		t.Fatalf("expected blob token before the closing brace, got %+v", tokens)
	}
}
