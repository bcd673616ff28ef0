package explain

import "testing"

func sampleReport() ExplainReport {
	executed := map[Stage]StageExplanation{
		StageLexical: {Stage: StageLexical, StageScore: 0.5, StageWeight: 2, Factors: []Factor{{Name: "term_match", Contribution: 0.5}}},
		StageFusion:  {Stage: StageFusion, StageScore: 0.2, StageWeight: 1},
	}
	hitA := ComposeHit("doc-a", executed, VerbosityDetailed, 10)
	hitB := ComposeHit("doc-b", executed, VerbosityDetailed, 10)
	return ExplainReport{
		ModeUsed:        "hybrid",
		Hits:            []HitExplanation{hitA, hitB},
		StageOrder:      StageOrder,
		TaxonomyVersion: TaxonomyVersion,
	}
}

// For all deny-sets D, redact_report_for_docs(D) leaves every hit with
// doc_id not in D untouched and every hit with doc_id in D with all
// scores zeroed and reason_codes = [code] (spec.md §8's redaction
// property).
func TestRedactReportForDocsOnlyAffectsDenySet(t *testing.T) {
	report := sampleReport()
	deny := map[string]bool{"doc-a": true}
	out := RedactReportForDocs(report, deny, ReasonRedactedScopeDeny)

	var a, b HitExplanation
	for _, h := range out.Hits {
		if h.DocID == "doc-a" {
			a = h
		}
		if h.DocID == "doc-b" {
			b = h
		}
	}

	if len(a.ReasonCodes) != 1 || a.ReasonCodes[0] != ReasonRedactedScopeDeny {
		t.Fatalf("expected doc-a reason codes = [redacted_scope_deny], got %v", a.ReasonCodes)
	}
	for _, s := range a.Stages {
		if !s.Redacted || s.StageScore != 0 || s.StageWeight != 0 || s.WeightedScore != 0 || len(s.Factors) != 0 {
			t.Fatalf("expected doc-a stages fully zeroed and redacted, got %+v", s)
		}
	}

	original := report.Hits[1]
	if len(b.Stages) != len(original.Stages) {
		t.Fatalf("doc-b stage count changed")
	}
	for i := range b.Stages {
		if b.Stages[i].Redacted {
			t.Fatalf("doc-b must be untouched, got redacted stage %+v", b.Stages[i])
		}
		if b.Stages[i].StageScore != original.Stages[i].StageScore {
			t.Fatalf("doc-b score mutated: %+v vs %+v", b.Stages[i], original.Stages[i])
		}
	}
}

func TestRedactReportForDocsEmptyDenySetNoOp(t *testing.T) {
	report := sampleReport()
	out := RedactReportForDocs(report, map[string]bool{}, ReasonRedactedScopeDeny)
	for i, h := range out.Hits {
		for j, s := range h.Stages {
			if s.Redacted {
				t.Fatalf("unexpected redaction with empty deny set: %+v", s)
			}
			if s.StageScore != report.Hits[i].Stages[j].StageScore {
				t.Fatalf("score changed with empty deny set")
			}
		}
	}
}

func TestComposeHitFillsMissingStagesAndSortsReasonCodes(t *testing.T) {
	executed := map[Stage]StageExplanation{
		StageLexical: {StageScore: 1, StageWeight: 1},
	}
	hit := ComposeHit("doc-x", executed, VerbosityStandard, 5)
	if len(hit.Stages) != 4 {
		t.Fatalf("expected exactly 4 canonical stages, got %d", len(hit.Stages))
	}
	foundNotExecuted := false
	for _, s := range hit.Stages {
		if s.Stage != StageLexical && s.Executed {
			t.Fatalf("expected non-lexical stages marked not executed: %+v", s)
		}
		if !s.Executed {
			foundNotExecuted = true
		}
	}
	if !foundNotExecuted {
		t.Fatalf("expected at least one not-executed stage")
	}
	containsStageNotExecuted := false
	for i := 1; i < len(hit.ReasonCodes); i++ {
		if reasonCodeOrder[hit.ReasonCodes[i-1]] > reasonCodeOrder[hit.ReasonCodes[i]] {
			t.Fatalf("reason codes not in stable total order: %v", hit.ReasonCodes)
		}
	}
	for _, rc := range hit.ReasonCodes {
		if rc == ReasonStageNotExecuted {
			containsStageNotExecuted = true
		}
	}
	if !containsStageNotExecuted {
		t.Fatalf("expected stage_not_executed reason code for missing stages")
	}
}

func TestComposeHitMinimalVerbosityHidesFactors(t *testing.T) {
	executed := map[Stage]StageExplanation{
		StageLexical: {StageScore: 1, StageWeight: 1, Factors: []Factor{{Name: "a", Contribution: 0.9}, {Name: "b", Contribution: 0.1}}},
	}
	hit := ComposeHit("doc-y", executed, VerbosityMinimal, 10)
	for _, s := range hit.Stages {
		if s.Stage == StageLexical && len(s.Factors) != 0 {
			t.Fatalf("expected minimal verbosity to hide factors, got %+v", s.Factors)
		}
	}
}

func TestComposeHitTruncatesAndSortsFactorsByAbsContribution(t *testing.T) {
	executed := map[Stage]StageExplanation{
		StageLexical: {
			StageScore:  1,
			StageWeight: 1,
			Factors: []Factor{
				{Name: "small", Contribution: 0.1},
				{Name: "big", Contribution: -0.9},
				{Name: "mid", Contribution: 0.5},
			},
		},
	}
	hit := ComposeHit("doc-z", executed, VerbosityDetailed, 2)
	for _, s := range hit.Stages {
		if s.Stage != StageLexical {
			continue
		}
		if len(s.Factors) != 2 {
			t.Fatalf("expected truncation to 2 factors, got %+v", s.Factors)
		}
		if s.Factors[0].Name != "big" || s.Factors[1].Name != "mid" {
			t.Fatalf("expected factors sorted by |contribution| desc, got %+v", s.Factors)
		}
	}
	if hit.TruncatedFactorCount != 1 {
		t.Fatalf("expected truncated_factor_count = 1, got %d", hit.TruncatedFactorCount)
	}
}
