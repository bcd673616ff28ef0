package search

import "sort"

// DocKind is the kind of entity a search hit refers to.
type DocKind int

const (
	DocMessage DocKind = iota
	DocAgent
	DocProject
	DocThread
)

// SearchHit is the final, assembled search result the RPC surface
// returns.
type SearchHit struct {
	DocID           string
	DocKind         DocKind
	Score           float64
	Snippet         string
	HasSnippet      bool
	HighlightRanges []HighlightRange
	Metadata        map[string]interface{}
}

// DocSource supplies the raw text and metadata the assembler needs for
// one document; callers adapt their store rows into this shape.
type DocSource struct {
	DocID    string
	DocKind  DocKind
	Text     string
	Metadata map[string]interface{}
}

// Assemble converts fused hits into SearchHit results: snippet + highlight
// extraction from terms, and metadata projection limited to the
// documented fields for Agent/Project/Thread/Message doc kinds.
// Deterministic tie-break on score: higher doc_id first (note this is
// the opposite direction from the fusion-stage doc_id-asc tie-break;
// spec.md deliberately specifies both, and this package preserves each
// stage's own rule rather than unifying them).
func Assemble(hits []FusedHit, sources map[string]DocSource, terms []string) []SearchHit {
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		src, ok := sources[h.DocID]
		hit := SearchHit{DocID: h.DocID, Score: h.FusedScore}
		if ok {
			hit.DocKind = src.DocKind
			hit.Metadata = projectMetadata(src.DocKind, src.Metadata)
			if snippet, found := BuildSnippet(src.Text, terms); found {
				hit.Snippet = snippet
				hit.HasSnippet = true
			}
			hit.HighlightRanges = HighlightRanges(src.Text, terms)
		}
		out = append(out, hit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID > out[j].DocID
	})
	return out
}

var projectedFields = map[string]bool{
	"sender": true, "project_slug": true, "project_id": true,
	"thread_id": true, "importance": true, "created_ts": true,
}

func projectMetadata(kind DocKind, meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	switch kind {
	case DocAgent, DocProject, DocThread, DocMessage:
		out := make(map[string]interface{}, len(meta))
		for k, v := range meta {
			if projectedFields[k] {
				out[k] = v
			}
		}
		return out
	default:
		return meta
	}
}
