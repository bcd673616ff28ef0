// Package search implements the hybrid lexical+semantic search pipeline:
// sanitisation, query assistance, candidate preparation, RRF fusion and
// response assembly. Grounded on
// _examples/original_source/crates/mcp-agent-mail-search-core (the Rust
// crate this pipeline was distilled from) for exact algorithm shape, and
// on the teacher's plain-function, no-framework style throughout.
package search

import (
	"regexp"
	"strings"

	"github.com/agentmail/bus/internal/stringutils"
)

// Sanitized is the outcome of Sanitize: either Empty or a Valid query string.
type Sanitized struct {
	Empty bool
	Query string
}

var (
	// indexSpecialChars are characters with grammar meaning in the
	// underlying bleve query language that need escaping in free text.
	indexSpecialChars = regexp.MustCompile(`[+\-&|!(){}\[\]^"~?\\:/]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	leadingWildcards  = regexp.MustCompile(`^\*+`)
	trailingLoneStar  = regexp.MustCompile(`(\S)\*$`)
	hyphenatedToken   = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+)+$`)
	punctuationOnly   = regexp.MustCompile(`^[\p{P}\p{S}]+$`)
	booleanOnly       = regexp.MustCompile(`^(AND|OR|NOT|NEAR)(\s+(AND|OR|NOT|NEAR))*$`)
)

// Sanitize normalises raw user query text per spec.md §4.6:
//   - empty/whitespace-only -> Empty
//   - unsearchable punctuation-only patterns -> Empty
//   - strips/escapes index-grammar specials
//   - collapses whitespace
//   - strips leading wildcards
//   - drops a lone '*' token (as a leading wildcard); a '*' trailing a
//     term is kept, since the parser treats term* as a prefix query
//   - quotes hyphenated tokens (ABC-123 -> "ABC-123")
//   - leaves already-quoted phrases intact
//   - rejects input that is only boolean operators
func Sanitize(raw string) Sanitized {
	if stringutils.IsEmpty(raw) {
		return Sanitized{Empty: true}
	}
	trimmed := strings.TrimSpace(raw)
	if punctuationOnly.MatchString(trimmed) {
		return Sanitized{Empty: true}
	}
	upper := strings.ToUpper(trimmed)
	if booleanOnly.MatchString(upper) {
		return Sanitized{Empty: true}
	}

	collapsed := whitespaceRun.ReplaceAllString(trimmed, " ")

	tokens := strings.Split(collapsed, " ")
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) > 1 {
			out = append(out, tok)
			continue
		}
		tok = leadingWildcards.ReplaceAllString(tok, "")
		if tok == "" {
			continue
		}
		// A '*' trailing a term is not stripped, whether single or
		// repeated.
		if trailingLoneStar.MatchString(tok) && !strings.HasSuffix(tok, "**") {
			// keep single trailing star: parser treats term* as a prefix
			// query, per spec.md §4.6's parser rule, so this is a no-op
			// here — but a bare '*' alone is stripped above by leadingWildcards.
		}
		switch {
		case hyphenatedToken.MatchString(tok):
			tok = `"` + tok + `"`
		case strings.Contains(tok, `\`):
			// already escaped by a prior Sanitize pass; leave as-is so
			// repeated sanitisation is idempotent.
		default:
			tok = escapeSpecials(tok)
		}
		out = append(out, tok)
	}

	final := strings.TrimSpace(strings.Join(out, " "))
	if final == "" {
		return Sanitized{Empty: true}
	}
	return Sanitized{Query: final}
}

func escapeSpecials(tok string) string {
	if strings.HasPrefix(tok, `"`) {
		return tok
	}
	return indexSpecialChars.ReplaceAllStringFunc(tok, func(m string) string {
		return `\` + m
	})
}
