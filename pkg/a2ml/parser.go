// Copyright 2025 Ochránce Project

package a2ml

import (
	"fmt"
	"strconv"

	"github.com/hyperpolymath/ochrance/pkg/diagnostic"
)

// ParseError wraps the diagnostic produced by a parse failure.
type ParseError struct {
	Diagnostic *diagnostic.Diagnostic
}

func (e *ParseError) Error() string { return e.Diagnostic.Error() }

func parseErr(query diagnostic.Query, tok Token, message string) *ParseError {
	d := diagnostic.New(query, diagnostic.PriorityCritical, diagnostic.CrossCutting(nil), message)
	d.Location = diagnostic.Location{Line: tok.Line, Column: tok.Column}
	return &ParseError{Diagnostic: d}
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token  { return p.tokens[p.pos] }
func (p *parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

// Parse consumes a token list and produces a Manifest AST (spec.md section
// 4.1, Parser). The header line is not tokenised by Lex — ParseDocument
// handles the full text including the header; Parse operates purely on an
// already-lexed section body and is exported for callers that already hold
// a token stream (e.g. incremental tooling).
func Parse(tokens []Token) (*Manifest, error) {
	p := &parser{tokens: tokens}
	sections := make(map[SectionTag]*Section)

	for p.peek().Kind != TokenEOF {
		sec, err := p.parseSection()
		if err != nil {
			return nil, err
		}
		if _, dup := sections[sec.Tag]; dup {
			return nil, parseErr(diagnostic.QueryDuplicateSection, p.peek(),
				fmt.Sprintf("section @%s appears more than once", sec.Tag))
		}
		sections[sec.Tag] = sec
	}

	if _, ok := sections[SectionManifest]; !ok {
		return nil, parseErr(diagnostic.QueryMissingRequired, p.peek(), "missing required section @manifest")
	}

	return &Manifest{Sections: sections}, nil
}

func (p *parser) parseSection() (*Section, error) {
	tag, ok := tagForToken(p.peek().Kind)
	if !ok {
		return nil, parseErr(diagnostic.QueryUnknownKeyword, p.peek(),
			"expected a section keyword (@manifest, @refs, @attestation, @policy, @audit)")
	}
	p.advance()

	if p.peek().Kind != TokenLBrace {
		return nil, parseErr(diagnostic.QueryParseFailure, p.peek(), "expected '{' after section keyword")
	}
	p.advance()

	entries, err := p.parseEntries(1)
	if err != nil {
		return nil, err
	}

	if p.peek().Kind != TokenRBrace {
		return nil, parseErr(diagnostic.QueryParseFailure, p.peek(), "expected '}' to close section")
	}
	p.advance()

	return &Section{Tag: tag, Entries: entries}, nil
}

func tagForToken(k TokenKind) (SectionTag, bool) {
	switch k {
	case TokenSectionManifest:
		return SectionManifest, true
	case TokenSectionRefs:
		return SectionRefs, true
	case TokenSectionAttestation:
		return SectionAttestation, true
	case TokenSectionPolicy:
		return SectionPolicy, true
	case TokenSectionAudit:
		return SectionAudit, true
	default:
		return "", false
	}
}

func (p *parser) parseEntries(depth int) ([]Entry, error) {
	if depth > MaxNestingDepth {
		return nil, parseErr(diagnostic.QueryNestingExceeded, p.peek(),
			fmt.Sprintf("nesting depth exceeds maximum of %d", MaxNestingDepth))
	}

	var entries []Entry
	for p.peek().Kind == TokenIdentifier {
		if len(entries) >= MaxFieldsPerSect {
			return nil, parseErr(diagnostic.QueryParseFailure, p.peek(),
				fmt.Sprintf("section exceeds maximum of %d fields", MaxFieldsPerSect))
		}

		key := p.advance().Text

		switch p.peek().Kind {
		case TokenColon, TokenEquals:
			p.advance()
			val, err := p.parseValue(depth)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: key, Value: val})

		case TokenLBrace:
			p.advance()
			nested, err := p.parseEntries(depth + 1)
			if err != nil {
				return nil, err
			}
			if p.peek().Kind != TokenRBrace {
				return nil, parseErr(diagnostic.QueryParseFailure, p.peek(), "expected '}' to close nested block")
			}
			p.advance()
			entries = append(entries, Entry{Key: key, Value: Value{Kind: ValueBlock, Block: &Section{Entries: nested}}})

		default:
			return nil, parseErr(diagnostic.QueryParseFailure, p.peek(), "expected ':', '=' or '{' after field name")
		}
	}
	return entries, nil
}

func (p *parser) parseValue(depth int) (Value, error) {
	tok := p.peek()

	switch tok.Kind {
	case TokenString:
		p.advance()
		return Value{Kind: ValueString, Str: tok.Text}, nil

	case TokenHashLiteral:
		p.advance()
		return Value{Kind: ValueHashLiteral, Str: tok.Text}, nil

	case TokenBlob:
		p.advance()
		return Value{Kind: ValueBlob, Str: tok.Text}, nil

	case TokenIdentifier:
		p.advance()
		if n, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
			return Value{Kind: ValueInteger, Int: n}, nil
		}
		if tok.Text == "true" || tok.Text == "false" {
			return Value{Kind: ValueBoolean, Bool: tok.Text == "true"}, nil
		}
		if isTimestampLike(tok.Text) {
			return Value{Kind: ValueTimestamp, Str: tok.Text}, nil
		}
		return Value{Kind: ValueIdentifier, Str: tok.Text}, nil

	case TokenLBrace:
		p.advance()
		var list []Value
		for p.peek().Kind != TokenRBrace {
			if len(list) >= MaxListLength {
				return Value{}, parseErr(diagnostic.QueryParseFailure, p.peek(),
					fmt.Sprintf("list exceeds maximum length %d", MaxListLength))
			}
			v, err := p.parseValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			list = append(list, v)
		}
		p.advance()
		return Value{Kind: ValueList, List: list}, nil

	default:
		return Value{}, parseErr(diagnostic.QueryParseFailure, tok, "expected a value")
	}
}

func isTimestampLike(s string) bool {
	// ISO-8601-with-Z shape, e.g. 2026-07-31T12:00:00Z. The validator
	// checks full conformance; the lexer/parser boundary only needs to
	// distinguish the token class.
	if len(s) < 20 || s[len(s)-1] != 'Z' {
		return false
	}
	return s[4] == '-' && s[7] == '-' && s[10] == 'T'
}

