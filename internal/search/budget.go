package search

import (
	"regexp"
	"strings"
)

// QueryClass classifies a sanitised query's token shape for budget
// derivation, per spec.md §4.6.
type QueryClass int

const (
	ClassEmpty QueryClass = iota
	ClassIdentifier
	ClassShortKeyword
	ClassNaturalLanguage
)

func (c QueryClass) String() string {
	switch c {
	case ClassEmpty:
		return "empty"
	case ClassIdentifier:
		return "identifier"
	case ClassShortKeyword:
		return "short_keyword"
	case ClassNaturalLanguage:
		return "natural_language"
	default:
		return "unknown"
	}
}

// Mode selects the search strategy requested by the caller.
type Mode int

const (
	ModeHybrid Mode = iota
	ModeAuto
	ModeLexicalFallback
)

var identifierShape = regexp.MustCompile(`^[A-Za-z0-9]+(-[A-Za-z0-9]+)+$|^[A-Za-z]+[0-9]+$`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "and": true, "or": true,
	"with": true, "that": true, "this": true, "it": true, "be": true,
}

// Classify determines the QueryClass of a sanitised (already-Sanitize'd)
// query string.
func Classify(query string) QueryClass {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return ClassEmpty
	}
	unquoted := strings.Trim(trimmed, `"`)
	tokens := strings.Fields(unquoted)

	if len(tokens) == 1 && identifierShape.MatchString(tokens[0]) {
		return ClassIdentifier
	}
	if len(tokens) <= 2 {
		allStop := true
		for _, tok := range tokens {
			if !stopwords[strings.ToLower(tok)] {
				allStop = false
				break
			}
		}
		if !allStop {
			return ClassShortKeyword
		}
	}
	return ClassNaturalLanguage
}

// ClassPosterior is a Bayesian-like posterior over QueryClass, advisory
// only per spec.md §4.6/§9 — it must never drive the deterministic
// budget derivation below.
type ClassPosterior struct {
	PEmpty           float64
	PIdentifier      float64
	PShortKeyword    float64
	PNaturalLanguage float64
}

// Posterior derives an advisory posterior distribution over classes,
// concentrated on the deterministic Classify result but never zero
// elsewhere, summing to 1.
func Posterior(query string) ClassPosterior {
	class := Classify(query)
	const dominant = 0.85
	const residual = (1 - dominant) / 3
	p := ClassPosterior{PEmpty: residual, PIdentifier: residual, PShortKeyword: residual, PNaturalLanguage: residual}
	switch class {
	case ClassEmpty:
		p.PEmpty = dominant
	case ClassIdentifier:
		p.PIdentifier = dominant
	case ClassShortKeyword:
		p.PShortKeyword = dominant
	case ClassNaturalLanguage:
		p.PNaturalLanguage = dominant
	}
	return p
}

// BudgetConfig configures budget derivation ratios; DefaultBudgetConfig
// provides sensible defaults.
type BudgetConfig struct {
	IdentifierLexicalRatio      float64
	IdentifierSemanticRatio     float64
	NaturalLanguageLexicalRatio float64
	NaturalLanguageSemanticRatio float64
	DefaultLexicalRatio         float64
	DefaultSemanticRatio        float64
}

// DefaultBudgetConfig favours lexical retrieval for Identifier queries
// and semantic retrieval for NaturalLanguage queries, per spec.md §4.6.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		IdentifierLexicalRatio:       1.5,
		IdentifierSemanticRatio:      0.25,
		NaturalLanguageLexicalRatio:  0.6,
		NaturalLanguageSemanticRatio: 1.25,
		DefaultLexicalRatio:          1.0,
		DefaultSemanticRatio:         1.0,
	}
}

// CandidateBudget is the derived per-source fetch limits; CombinedLimit
// is always >= requested.
type CandidateBudget struct {
	LexicalLimit  int
	SemanticLimit int
	CombinedLimit int
}

// DeriveBudget computes a CandidateBudget for (requested, mode, class,
// config). LexicalFallback and Empty always yield SemanticLimit = 0.
func DeriveBudget(requested int, mode Mode, class QueryClass, cfg BudgetConfig) CandidateBudget {
	if requested < 1 {
		requested = 1
	}

	if mode == ModeLexicalFallback || class == ClassEmpty {
		return CandidateBudget{LexicalLimit: requested, SemanticLimit: 0, CombinedLimit: requested}
	}

	lexRatio, semRatio := cfg.DefaultLexicalRatio, cfg.DefaultSemanticRatio
	switch class {
	case ClassIdentifier:
		lexRatio, semRatio = cfg.IdentifierLexicalRatio, cfg.IdentifierSemanticRatio
	case ClassNaturalLanguage:
		lexRatio, semRatio = cfg.NaturalLanguageLexicalRatio, cfg.NaturalLanguageSemanticRatio
	}

	lexLimit := ceilRatio(requested, lexRatio)
	semLimit := ceilRatio(requested, semRatio)
	if lexLimit < 1 {
		lexLimit = 1
	}
	combined := lexLimit + semLimit
	if combined < requested {
		combined = requested
	}
	return CandidateBudget{LexicalLimit: lexLimit, SemanticLimit: semLimit, CombinedLimit: combined}
}

func ceilRatio(requested int, ratio float64) int {
	v := float64(requested) * ratio
	n := int(v)
	if float64(n) < v {
		n++
	}
	return n
}
