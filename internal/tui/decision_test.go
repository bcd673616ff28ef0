package tui

import (
	"math"
	"testing"
)

func sumPosterior(p [4]float64) float64 {
	return p[0] + p[1] + p[2] + p[3]
}

func TestPosteriorSumsToOne(t *testing.T) {
	cases := []FrameState{
		{ChangeRatio: 0, IsResize: false, BudgetRemaining: 16, ErrorCount: 0},
		{ChangeRatio: 1, IsResize: false, BudgetRemaining: 16, ErrorCount: 0},
		{ChangeRatio: 0.5, IsResize: true, BudgetRemaining: 2, ErrorCount: 5},
		{ChangeRatio: 0, IsResize: false, BudgetRemaining: -100, ErrorCount: 1000},
	}
	st := NewStrategy()
	for i, f := range cases {
		d := st.Decide(f)
		sum := sumPosterior(d.Posterior)
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("case %d: posterior sums to %v, want ~1", i, sum)
		}
		for j, p := range d.Posterior {
			if p < -1e-9 || p > 1+1e-9 {
				t.Fatalf("case %d: posterior[%d]=%v out of [0,1]", i, j, p)
			}
		}
	}
}

func TestPosteriorSumsToOneLongSequence(t *testing.T) {
	st := NewStrategy()
	for i := 0; i < 10000; i++ {
		f := FrameState{
			ChangeRatio:     float64(i%101) / 100,
			IsResize:        i%7 == 0,
			BudgetRemaining: float64(i%20) - 5,
			ErrorCount:      i % 5,
		}
		d := st.Decide(f)
		sum := sumPosterior(d.Posterior)
		if math.Abs(sum-1) > 1e-6 {
			t.Fatalf("iter %d: posterior sums to %v", i, sum)
		}
	}
}

func TestZeroLikelihoodFallsBackToUniform(t *testing.T) {
	post := posterior([4]float64{0, 0, 0, 0}, [4]float64{1, 1, 1, 1})
	for _, p := range post {
		if math.Abs(p-0.25) > 1e-9 {
			t.Fatalf("expected uniform fallback, got %v", post)
		}
	}
}

func TestDegradedPrefersFullOverDeferred(t *testing.T) {
	st := NewStrategy()
	var last Decision
	for i := 0; i < 5; i++ {
		last = st.Decide(FrameState{ChangeRatio: 0.1, IsResize: false, BudgetRemaining: 0, ErrorCount: 50})
	}
	if dominantState(last.Posterior) == StateDegraded && last.Chosen == ActionDeferred {
		t.Fatalf("degraded state must never choose deferred, got %v", last.Chosen)
	}
}

func TestTieBreakOrderIncrementalFirst(t *testing.T) {
	post := [4]float64{0.25, 0.25, 0.25, 0.25}
	losses := [3]float64{5, 5, 5}
	if a := chooseAction(post, losses); a != ActionIncremental {
		t.Fatalf("expected tie-break to favor Incremental, got %v", a)
	}
}

func TestDeterministicFallbackForcesFull(t *testing.T) {
	st := NewStrategy()
	st.DeterministicFallback = true
	d := st.Decide(FrameState{ChangeRatio: 1, IsResize: true, BudgetRemaining: 0, ErrorCount: 0})
	if d.Chosen != ActionFull {
		t.Fatalf("expected forced Full, got %v", d.Chosen)
	}
}

func TestEvidenceEntrySchema(t *testing.T) {
	st := NewStrategy()
	d := st.Decide(FrameState{ChangeRatio: 0.4})
	e := d.EvidenceEntry(123456)
	if e.PolicyVersion != "bayesian_tui_v1" {
		t.Fatalf("unexpected policy version: %s", e.PolicyVersion)
	}
	if e.DecisionPoint != "tui_frame_render" {
		t.Fatalf("unexpected decision point: %s", e.DecisionPoint)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", e.Confidence)
	}
}
