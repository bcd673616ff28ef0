// engine.go wires sanitisation, query-assist parsing, bleve-backed
// lexical retrieval, the semantic index, candidate preparation, RRF
// fusion and response assembly into the single entry point the MCP
// surface calls. Grounded on the teacher's internal/memory query
// helpers for "one struct owns the index handle, exposes plain Go
// methods" shape; the bleve wiring itself follows
// _examples/original_source's indexing notes for field boosts.
package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"

	"github.com/agentmail/bus/internal/errs"
	"github.com/agentmail/bus/internal/search/assist"
	"github.com/agentmail/bus/internal/search/explain"
	"github.com/agentmail/bus/internal/search/semantic"
)

// MessageDoc is what gets indexed for one message.
type MessageDoc struct {
	DocID     string
	ProjectID int64
	ThreadID  int64
	Subject   string
	Body      string
}

// Engine bundles the lexical (bleve) and semantic indexes plus the
// sources map the assembler needs to project metadata/snippets.
type Engine struct {
	lexical  bleve.Index
	semantic semantic.Index
	sources  map[string]DocSource
}

// NewEngine builds an in-memory bleve index (subject/body fields, no
// persistence — the bus rebuilds it from the store on startup) and a
// brute-force semantic index.
func NewEngine() (*Engine, error) {
	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, err
	}
	return &Engine{
		lexical:  idx,
		semantic: semantic.NewBruteForceIndex(),
		sources:  make(map[string]DocSource),
	}, nil
}

// IndexMessage upserts a message document into both the lexical index
// and the assembler's source table. Semantic embedding is left to a
// caller-supplied vector (nil skips the semantic side); the bus itself
// has no embedding model, so semantic recall is a capability reserved
// for a future embedder, per DESIGN.md.
func (e *Engine) IndexMessage(doc MessageDoc, vector []float64) error {
	body := struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}{Subject: doc.Subject, Body: doc.Body}
	if err := e.lexical.Index(doc.DocID, body); err != nil {
		return err
	}
	e.sources[doc.DocID] = DocSource{
		DocID:   doc.DocID,
		DocKind: DocMessage,
		Text:    doc.Subject + "\n" + doc.Body,
		Metadata: map[string]interface{}{
			"project_id": doc.ProjectID,
			"thread_id":  doc.ThreadID,
		},
	}
	if vector != nil {
		return e.semantic.Upsert(context.Background(), doc.DocID, vector)
	}
	return nil
}

// DeleteMessage removes a message from both indexes.
func (e *Engine) DeleteMessage(ctx context.Context, docID string) error {
	delete(e.sources, docID)
	_ = e.semantic.Delete(ctx, docID)
	return e.lexical.Delete(docID)
}

// Result is one Search call's full output: assembled hits plus an
// explain report suitable for the query_assist/explain RPC surface.
type Result struct {
	Hits    []SearchHit
	Assist  assist.Parsed
	Explain explain.ExplainReport
}

// Search runs raw through assist parsing, sanitisation, budget
// derivation, lexical+semantic retrieval, fusion and assembly, and
// returns the final hit list plus an explain report. queryVector is the
// caller's (optional) embedding of the query text for semantic recall.
func (e *Engine) Search(ctx context.Context, raw string, mode Mode, limit int, queryVector []float64, projectID int64) (Result, error) {
	parsed := assist.Parse(raw)
	sanitized := Sanitize(parsed.QueryText)
	class := Classify(sanitized.Query)
	budget := DeriveBudget(limit, mode, class, DefaultBudgetConfig())

	phaseTimings := map[string]int64{}
	report := explain.NewReport(modeLabel(mode), 0, phaseTimings)

	if sanitized.Empty {
		return Result{Assist: parsed, Explain: report}, nil
	}

	bq, err := BuildQuery(sanitized)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindValidation, "build search query", err)
	}

	req := bleve.NewSearchRequestOptions(bq, budget.LexicalLimit, 0, false)
	bres, err := e.lexical.SearchInContext(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("lexical search: %w", err)
	}
	lexHits := make([]RankedHit, 0, len(bres.Hits))
	rank := 0
	for _, h := range bres.Hits {
		if !e.belongsToProject(h.ID, projectID) {
			continue
		}
		rank++
		lexHits = append(lexHits, RankedHit{DocID: h.ID, Rank: rank, Score: h.Score})
	}

	var semHits []RankedHit
	if budget.SemanticLimit > 0 && queryVector != nil {
		sres, err := e.semantic.Search(ctx, queryVector, budget.SemanticLimit)
		if err != nil {
			return Result{}, fmt.Errorf("semantic search: %w", err)
		}
		for i, h := range sres {
			semHits = append(semHits, RankedHit{DocID: h.DocID, Rank: i + 1, Score: h.Score})
		}
	}

	candidates, _ := PrepareCandidates(lexHits, semHits, budget.LexicalLimit, budget.SemanticLimit)
	fused := Fuse(candidates, DefaultFusionConfig())
	paginated := Paginate(fused, 0, limit)

	terms := assist.ExtractTerms(sanitized.Query)
	hits := Assemble(paginated, e.sources, terms)

	report = explain.NewReport(modeLabel(mode), len(candidates), phaseTimings)

	return Result{Hits: hits, Assist: parsed, Explain: report}, nil
}

// belongsToProject reports whether docID's indexed source is tagged
// with projectID, or true unconditionally when projectID is 0 (no
// filter requested).
func (e *Engine) belongsToProject(docID string, projectID int64) bool {
	if projectID == 0 {
		return true
	}
	src, ok := e.sources[docID]
	if !ok {
		return false
	}
	pid, ok := src.Metadata["project_id"].(int64)
	return ok && pid == projectID
}

func modeLabel(m Mode) string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeLexicalFallback:
		return "lexical_fallback"
	default:
		return "hybrid"
	}
}
