// parse.go compiles a sanitized query string into a bleve query tree,
// grounded on spec.md §4.6's parser rule and on bleve's own query-string
// grammar (github.com/blevesearch/bleve/v2/search/query).
package search

import (
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/agentmail/bus/internal/errs"
)

const (
	FieldSubject = "subject"
	FieldBody    = "body"

	SubjectBoost = 2.0
	BodyBoost    = 1.0
)

var singleWildcardTerm = regexp.MustCompile(`^[^\s"]+\*$`)

// BuildQuery compiles a sanitized query into a bleve query.Query.
// A bare single-word "term*" compiles directly to a multi-field prefix
// query. Otherwise the standard grammar is parsed per field (subject
// weighted ~2x body) via bleve's query-string parser; on a grammar
// parse failure for either field, falls back to an OR of per-term
// match queries against both fields (best-effort, unweighted).
func BuildQuery(sanitized Sanitized) (query.Query, error) {
	if sanitized.Empty {
		return nil, errs.New(errs.KindValidation, "empty search query")
	}

	if singleWildcardTerm.MatchString(sanitized.Query) {
		return prefixQuery(strings.TrimSuffix(sanitized.Query, "*")), nil
	}

	subjQ, errSubj := query.ParseQuerySyntax(fieldScoped(sanitized.Query, FieldSubject))
	bodyQ, errBody := query.ParseQuerySyntax(fieldScoped(sanitized.Query, FieldBody))
	if errSubj != nil || errBody != nil {
		return fallbackQuery(sanitized.Query), nil
	}

	if b, ok := subjQ.(query.BoostableQuery); ok {
		b.SetBoost(SubjectBoost)
	}
	if b, ok := bodyQ.(query.BoostableQuery); ok {
		b.SetBoost(BodyBoost)
	}

	return query.NewDisjunctionQuery([]query.Query{subjQ, bodyQ}), nil
}

func fieldScoped(qs, field string) string {
	return field + ":(" + qs + ")"
}

func prefixQuery(term string) query.Query {
	subj := query.NewPrefixQuery(term)
	subj.SetField(FieldSubject)
	subj.SetBoost(SubjectBoost)

	body := query.NewPrefixQuery(term)
	body.SetField(FieldBody)
	body.SetBoost(BodyBoost)

	return query.NewDisjunctionQuery([]query.Query{subj, body})
}

// fallbackQuery builds an unweighted OR of per-term match queries across
// both fields, used when the standard grammar fails to parse.
func fallbackQuery(qs string) query.Query {
	terms := strings.Fields(qs)
	var disjuncts []query.Query
	for _, term := range terms {
		term = strings.Trim(term, `"`)
		if term == "" {
			continue
		}
		subj := query.NewMatchQuery(term)
		subj.SetField(FieldSubject)
		body := query.NewMatchQuery(term)
		body.SetField(FieldBody)
		disjuncts = append(disjuncts, subj, body)
	}
	if len(disjuncts) == 0 {
		return query.NewMatchNoneQuery()
	}
	return query.NewDisjunctionQuery(disjuncts)
}
