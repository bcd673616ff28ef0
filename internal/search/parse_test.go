package search

import "testing"

func TestBuildQueryEmptyRejected(t *testing.T) {
	if _, err := BuildQuery(Sanitized{Empty: true}); err == nil {
		t.Fatalf("expected an error for an empty query")
	}
}

func TestBuildQuerySingleWildcardTermIsPrefixQuery(t *testing.T) {
	q, err := BuildQuery(Sanitized{Query: "deploy*"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil {
		t.Fatalf("expected a non-nil query")
	}
}

func TestBuildQueryStandardGrammarBoostsSubject(t *testing.T) {
	q, err := BuildQuery(Sanitized{Query: "deploy AND plan"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q == nil {
		t.Fatalf("expected a non-nil query")
	}
}

func TestBuildQueryFallsBackOnGrammarFailure(t *testing.T) {
	// An unbalanced parenthesis is invalid bleve query-string grammar
	// once field-scoped; BuildQuery must still return a usable query.
	q, err := BuildQuery(Sanitized{Query: `(deploy`})
	if err != nil {
		t.Fatalf("fallback path must not error: %v", err)
	}
	if q == nil {
		t.Fatalf("expected a fallback query")
	}
}
