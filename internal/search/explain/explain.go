// Package explain composes and redacts ExplainReport payloads for search
// hits: per-stage factor breakdowns, a closed reason-code taxonomy and
// scope-aware redaction. Grounded on spec.md §4.6/§4.7 and on
// _examples/original_source/crates/mcp-agent-mail-search-core for the
// exact stage ordering and redaction semantics.
package explain

import "sort"

// TaxonomyVersion is the stable version of the reason-code taxonomy.
const TaxonomyVersion = 1

// Stage is one of the four canonical explain stages, always present in
// that fixed order on every hit.
type Stage int

const (
	StageLexical Stage = iota
	StageSemantic
	StageFusion
	StageRerank
)

// StageOrder is the fixed canonical stage ordering used on every report.
var StageOrder = []Stage{StageLexical, StageSemantic, StageFusion, StageRerank}

func (s Stage) String() string {
	switch s {
	case StageLexical:
		return "lexical"
	case StageSemantic:
		return "semantic"
	case StageFusion:
		return "fusion"
	case StageRerank:
		return "rerank"
	default:
		return "unknown"
	}
}

// ReasonCode is a closed, stably-serialized enum describing why a hit
// scored or was redacted the way it did.
type ReasonCode string

const (
	ReasonLexicalMatch      ReasonCode = "lexical_match"
	ReasonSemanticMatch     ReasonCode = "semantic_match"
	ReasonFusedMultiSource  ReasonCode = "fused_multi_source"
	ReasonStageNotExecuted  ReasonCode = "stage_not_executed"
	ReasonRerankApplied     ReasonCode = "rerank_applied"
	ReasonRedactedScopeDeny ReasonCode = "redacted_scope_deny"
)

// reasonCodeOrder defines the total, stable ordering over the taxonomy.
var reasonCodeOrder = map[ReasonCode]int{
	ReasonLexicalMatch:      0,
	ReasonSemanticMatch:     1,
	ReasonFusedMultiSource:  2,
	ReasonRerankApplied:     3,
	ReasonStageNotExecuted:  4,
	ReasonRedactedScopeDeny: 5,
}

// Verbosity controls how much factor detail a rendered report carries.
type Verbosity int

const (
	VerbosityMinimal Verbosity = iota
	VerbosityStandard
	VerbosityDetailed
)

// Factor is one scoring contributor within a stage.
type Factor struct {
	Name         string
	Contribution float64
	Detail       string
}

// StageExplanation is one stage's contribution to a hit's score.
type StageExplanation struct {
	Stage         Stage
	Executed      bool
	StageScore    float64
	StageWeight   float64
	WeightedScore float64
	Factors       []Factor
	Redacted      bool
}

// HitExplanation is the per-hit explain payload: always exactly the four
// canonical stages (missing ones filled with StageNotExecuted), plus a
// sorted, deduplicated reason-code list.
type HitExplanation struct {
	DocID                string
	Stages               []StageExplanation
	ReasonCodes          []ReasonCode
	TruncatedFactorCount int
}

// ExplainReport is the top-level explain payload for a search response.
type ExplainReport struct {
	ModeUsed            string
	CandidatesEvaluated int
	PhaseTimingsUS      map[string]int64
	Hits                []HitExplanation
	StageOrder          []Stage
	TaxonomyVersion     int
}

// NewReport builds an ExplainReport skeleton with the fixed stage order
// and taxonomy version stamped.
func NewReport(modeUsed string, candidatesEvaluated int, phaseTimingsUS map[string]int64) ExplainReport {
	return ExplainReport{
		ModeUsed:            modeUsed,
		CandidatesEvaluated: candidatesEvaluated,
		PhaseTimingsUS:      phaseTimingsUS,
		StageOrder:          StageOrder,
		TaxonomyVersion:     TaxonomyVersion,
	}
}

// ComposeHit builds a HitExplanation from whatever stages were actually
// executed, filling any of the four canonical stages that are absent
// with a StageNotExecuted marker, applying verbosity and
// maxFactorsPerStage, and producing a sorted deduplicated reason-code
// list that always includes codes for missing stages.
func ComposeHit(docID string, executed map[Stage]StageExplanation, verbosity Verbosity, maxFactorsPerStage int) HitExplanation {
	hit := HitExplanation{DocID: docID}
	reasonSet := make(map[ReasonCode]bool)

	for _, s := range StageOrder {
		se, ok := executed[s]
		if !ok {
			se = StageExplanation{Stage: s, Executed: false}
			reasonSet[ReasonStageNotExecuted] = true
		} else {
			se.Executed = true
			se.WeightedScore = se.StageScore * se.StageWeight
			sort.SliceStable(se.Factors, func(i, j int) bool {
				return absF(se.Factors[i].Contribution) > absF(se.Factors[j].Contribution)
			})
			if maxFactorsPerStage > 0 && len(se.Factors) > maxFactorsPerStage {
				hit.TruncatedFactorCount += len(se.Factors) - maxFactorsPerStage
				se.Factors = se.Factors[:maxFactorsPerStage]
			}
			switch verbosity {
			case VerbosityMinimal:
				se.Factors = nil
			case VerbosityStandard:
				for i := range se.Factors {
					se.Factors[i].Detail = ""
				}
			}
			reasonSet[stageReason(s)] = true
		}
		hit.Stages = append(hit.Stages, se)
	}

	hit.ReasonCodes = sortedReasonCodes(reasonSet)
	return hit
}

func stageReason(s Stage) ReasonCode {
	switch s {
	case StageLexical:
		return ReasonLexicalMatch
	case StageSemantic:
		return ReasonSemanticMatch
	case StageFusion:
		return ReasonFusedMultiSource
	case StageRerank:
		return ReasonRerankApplied
	default:
		return ReasonStageNotExecuted
	}
}

func sortedReasonCodes(set map[ReasonCode]bool) []ReasonCode {
	out := make([]ReasonCode, 0, len(set))
	for rc := range set {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool {
		return reasonCodeOrder[out[i]] < reasonCodeOrder[out[j]]
	})
	return out
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// RedactHitExplanation zeros all scores/weights, clears factors, marks
// every stage redacted, and sets reason_codes to exactly [code].
func RedactHitExplanation(hit HitExplanation, code ReasonCode) HitExplanation {
	out := hit
	out.TruncatedFactorCount = 0
	out.Stages = make([]StageExplanation, len(hit.Stages))
	for i, s := range hit.Stages {
		out.Stages[i] = StageExplanation{
			Stage:    s.Stage,
			Executed: s.Executed,
			Redacted: true,
		}
	}
	out.ReasonCodes = []ReasonCode{code}
	return out
}

// RedactReportForDocs redacts every hit whose DocID is in denySet,
// leaving every other hit untouched.
func RedactReportForDocs(report ExplainReport, denySet map[string]bool, code ReasonCode) ExplainReport {
	out := report
	out.Hits = make([]HitExplanation, len(report.Hits))
	for i, h := range report.Hits {
		if denySet[h.DocID] {
			out.Hits[i] = RedactHitExplanation(h, code)
		} else {
			out.Hits[i] = h
		}
	}
	return out
}
