// Copyright 2025 Ochránce Project

package a2ml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
)

// ParseDocument parses a full A2ML wire document, including its header
// line "a2ml/MAJOR.MINOR", tokenising and parsing the remainder and
// recording the parsed header version on the resulting Manifest (spec.md
// section 4.1, A2ML wire format).
func ParseDocument(src string) (*Manifest, error) {
	if len(src) > MaxDocumentBytes {
		d := diagnostic.New(diagnostic.QueryIOFailure, diagnostic.PriorityCritical, diagnostic.CrossCutting(nil),
			fmt.Sprintf("document exceeds maximum size of %d bytes", MaxDocumentBytes))
		return nil, d
	}

	headerEnd := strings.IndexByte(src, '\n')
	if headerEnd < 0 {
		return nil, parseErr(diagnostic.QueryParseFailure, Token{Line: 1, Column: 1}, "missing a2ml header line")
	}
	header := src[:headerEnd]
	major, minor, err := parseHeader(header)
	if err != nil {
		return nil, parseErr(diagnostic.QueryParseFailure, Token{Line: 1, Column: 1}, err.Error())
	}

	body := src[headerEnd+1:]
	tokens, err := Lex(body)
	if err != nil {
		return nil, err
	}

	m, err := Parse(tokens)
	if err != nil {
		return nil, err
	}
	m.MajorVersion = major
	m.MinorVersion = minor
	return m, nil
}

func parseHeader(header string) (int, int, error) {
	const prefix = "a2ml/"
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, fmt.Errorf("a2ml: header must begin with %q", prefix)
	}
	rest := header[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, fmt.Errorf("a2ml: header must be of the form a2ml/MAJOR.MINOR")
	}
	major, err := strconv.Atoi(rest[:dot])
	if err != nil {
		return 0, 0, fmt.Errorf("a2ml: invalid major version: %w", err)
	}
	minor, err := strconv.Atoi(rest[dot+1:])
	if err != nil {
		return 0, 0, fmt.Errorf("a2ml: invalid minor version: %w", err)
	}
	return major, minor, nil
}

// SerializeDocument renders m as a complete A2ML document, equivalent to
// Serialize but named to pair with ParseDocument at call sites.
func SerializeDocument(m *Manifest) string {
	return Serialize(m)
}
