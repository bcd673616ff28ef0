// Package assist implements query-assistance parsing: leading/interleaved
// field:value hints, alias resolution, typo suggestions and term
// extraction for the search pipeline. Grounded on spec.md §4.7 and on
// _examples/original_source's Rust query-assist module for the exact
// alias table and edit-distance cutoff.
package assist

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Field is a canonical query-assist field.
type Field string

const (
	FieldFrom       Field = "from"
	FieldThread     Field = "thread"
	FieldProject    Field = "project"
	FieldBefore     Field = "before"
	FieldAfter      Field = "after"
	FieldImportance Field = "importance"
)

var canonicalFields = []Field{
	FieldFrom, FieldThread, FieldProject, FieldBefore, FieldAfter, FieldImportance,
}

var aliases = map[string]Field{
	"from":       FieldFrom,
	"sender":     FieldFrom,
	"frm":        FieldFrom,
	"thread":     FieldThread,
	"thread_id":  FieldThread,
	"thr":        FieldThread,
	"project":    FieldProject,
	"proj":       FieldProject,
	"since":      FieldAfter,
	"after":      FieldAfter,
	"until":      FieldBefore,
	"before":     FieldBefore,
	"importance": FieldImportance,
	"priority":   FieldImportance,
	"prio":       FieldImportance,
	"imp":        FieldImportance,
}

// maxSuggestDistance is the edit-distance cutoff for DidYouMeanHint.
const maxSuggestDistance = 2

// Hint is one resolved field:value pair.
type Hint struct {
	Field Field
	Value string
}

// DidYouMeanHint flags a token that looked like it was trying to be a
// field hint but didn't match any alias exactly.
type DidYouMeanHint struct {
	Token          string
	SuggestedField Field
	Value          string
}

// Parsed is the result of parsing a raw query for field hints.
type Parsed struct {
	Hints       []Hint
	Suggestions []DidYouMeanHint
	QueryText   string
}

var hintToken = regexp.MustCompile(`^([A-Za-z_]+):(.*)$`)
var quotedValue = regexp.MustCompile(`^"([^"]*)"$`)

// queryToken splits a query on whitespace but keeps a double-quoted
// span (e.g. from:"Blue Lake") inside one token.
var queryToken = regexp.MustCompile(`\S*"[^"]*"\S*|\S+`)

// Parse scans query for leading/interleaved field:value hints, resolving
// aliases case-insensitively and collecting typo suggestions for
// near-miss field names (edit distance <= 2). Tokens that resolve to a
// hint are removed from the returned query_text; DidYouMeanHint tokens
// and unrelated tokens are left in query_text unchanged.
func Parse(query string) Parsed {
	fields := queryToken.FindAllString(query, -1)
	var remaining []string
	var p Parsed

	for _, tok := range fields {
		m := hintToken.FindStringSubmatch(tok)
		if m == nil {
			remaining = append(remaining, tok)
			continue
		}
		key := strings.ToLower(m[1])
		value := unquote(m[2])

		if canonical, ok := aliases[key]; ok {
			if value == "" {
				remaining = append(remaining, tok)
				continue
			}
			p.Hints = append(p.Hints, Hint{Field: canonical, Value: value})
			continue
		}

		if suggested, dist, ok := nearestField(key); ok && dist <= maxSuggestDistance {
			p.Suggestions = append(p.Suggestions, DidYouMeanHint{
				Token:          tok,
				SuggestedField: suggested,
				Value:          value,
			})
		}
		remaining = append(remaining, tok)
	}

	p.QueryText = strings.Join(remaining, " ")
	return p
}

func unquote(v string) string {
	if m := quotedValue.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return v
}

func nearestField(key string) (Field, int, bool) {
	best := -1
	var bestField Field
	for _, f := range canonicalFields {
		d := levenshtein.ComputeDistance(key, string(f))
		if best == -1 || d < best {
			best = d
			bestField = f
		}
	}
	if best == -1 {
		return "", 0, false
	}
	return bestField, best, true
}

var booleanOps = regexp.MustCompile(`(?i)^(AND|OR|NOT|NEAR)$`)
var nonAlnumEdge = regexp.MustCompile(`^[^A-Za-z0-9_-]+|[^A-Za-z0-9_-]+$`)

// ExtractTerms returns lowercase terms from query, dropping boolean
// operators and trimming non-alphanumeric edges while preserving
// interior '-' and '_'.
func ExtractTerms(query string) []string {
	var terms []string
	for _, tok := range strings.Fields(query) {
		if booleanOps.MatchString(tok) {
			continue
		}
		trimmed := nonAlnumEdge.ReplaceAllString(tok, "")
		if trimmed == "" {
			continue
		}
		terms = append(terms, strings.ToLower(trimmed))
	}
	return terms
}
