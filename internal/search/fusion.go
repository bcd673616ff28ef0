// fusion.go implements reciprocal-rank fusion (RRF), grounded on
// _examples/original_source/crates/mcp-agent-mail-search-core/src/fusion.rs
// — the exact contribution formula, default k, and the deterministic
// tie-break chain are taken from there.
package search

import "sort"

// DefaultRRFK is the default RRF constant; override via FusionConfig.
const DefaultRRFK = 60.0

// FusionConfig configures the RRF constant k.
type FusionConfig struct {
	K float64
}

// DefaultFusionConfig returns {K: 60}.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{K: DefaultRRFK}
}

// SourceRank is one source's rank (1-based) and raw score for a doc_id.
type SourceRank struct {
	Rank  int
	Score float64
}

// Candidate is one document's per-source ranks going into fusion.
type Candidate struct {
	DocID    string
	Lexical  *SourceRank // nil if not present in the lexical source
	Semantic *SourceRank // nil if not present in the semantic source
}

// FusedHit is one document's fusion result.
type FusedHit struct {
	DocID             string
	FusedScore        float64
	LexicalScore      float64
	LexicalContrib    float64
	SemanticScore     float64
	SemanticContrib   float64
	LexicalPresent    bool
	SemanticPresent   bool
}

const tieEpsilon = 1e-12

// Fuse computes RRF-fused scores for every candidate and returns them in
// deterministic order: (i) fused score desc with epsilon tolerance,
// (ii) lexical score desc, (iii) doc_id asc.
func Fuse(candidates []Candidate, cfg FusionConfig) []FusedHit {
	k := cfg.K
	if k <= 0 {
		k = DefaultRRFK
	}
	hits := make([]FusedHit, 0, len(candidates))
	for _, c := range candidates {
		h := FusedHit{DocID: c.DocID}
		if c.Lexical != nil {
			h.LexicalPresent = true
			h.LexicalScore = c.Lexical.Score
			h.LexicalContrib = 1.0 / (k + float64(c.Lexical.Rank))
			h.FusedScore += h.LexicalContrib
		}
		if c.Semantic != nil {
			h.SemanticPresent = true
			h.SemanticScore = c.Semantic.Score
			h.SemanticContrib = 1.0 / (k + float64(c.Semantic.Rank))
			h.FusedScore += h.SemanticContrib
		}
		hits = append(hits, h)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if diff := a.FusedScore - b.FusedScore; diff > tieEpsilon || diff < -tieEpsilon {
			return a.FusedScore > b.FusedScore
		}
		if a.LexicalScore != b.LexicalScore {
			return a.LexicalScore > b.LexicalScore
		}
		return a.DocID < b.DocID
	})
	return hits
}

// Paginate applies offset then limit.max(1) to an already-fused, ordered
// hit list.
func Paginate(hits []FusedHit, offset, limit int) []FusedHit {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 1
	}
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}
