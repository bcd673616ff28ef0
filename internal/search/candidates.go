package search

// RankedHit is one raw hit from a single source (lexical or semantic)
// before merging into Candidate form.
type RankedHit struct {
	DocID string
	Rank  int
	Score float64
}

// PrepareCounts reports how candidate preparation trimmed and deduped
// the raw hit lists, per spec.md §4.6.
type PrepareCounts struct {
	LexicalConsidered  int
	LexicalSelected    int
	SemanticConsidered int
	SemanticSelected   int
	DuplicatesRemoved  int
}

// PrepareCandidates merges lexical and semantic hit lists into fusion
// Candidates: preserves the deterministic order each source already
// provided, deduplicates by doc_id (combining both ranks when a doc_id
// appears in both sources), applies per-source caps, and reports
// first-source attribution via PrepareCounts.
func PrepareCandidates(lexical, semantic []RankedHit, lexicalCap, semanticCap int) ([]Candidate, PrepareCounts) {
	counts := PrepareCounts{
		LexicalConsidered:  len(lexical),
		SemanticConsidered: len(semantic),
	}

	lex := capHits(lexical, lexicalCap)
	sem := capHits(semantic, semanticCap)
	counts.LexicalSelected = len(lex)
	counts.SemanticSelected = len(sem)

	byDoc := make(map[string]*Candidate)
	var order []string

	for _, h := range lex {
		h := h
		if _, ok := byDoc[h.DocID]; !ok {
			order = append(order, h.DocID)
			byDoc[h.DocID] = &Candidate{DocID: h.DocID}
		}
		byDoc[h.DocID].Lexical = &SourceRank{Rank: h.Rank, Score: h.Score}
	}
	for _, h := range sem {
		h := h
		existing, ok := byDoc[h.DocID]
		if !ok {
			order = append(order, h.DocID)
			existing = &Candidate{DocID: h.DocID}
			byDoc[h.DocID] = existing
		} else {
			counts.DuplicatesRemoved++
		}
		existing.Semantic = &SourceRank{Rank: h.Rank, Score: h.Score}
	}

	out := make([]Candidate, 0, len(order))
	for _, id := range order {
		out = append(out, *byDoc[id])
	}
	return out, counts
}

func capHits(hits []RankedHit, cap_ int) []RankedHit {
	if cap_ <= 0 || cap_ >= len(hits) {
		return hits
	}
	return hits[:cap_]
}
