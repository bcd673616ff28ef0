package metrics

import (
	"testing"
	"time"
)

func TestComputeHealthLevelGreen(t *testing.T) {
	level, _ := ComputeHealthLevel(HealthSignals{PoolUtilizationPct: 10, WBQDepthPct: 5, CommitDepthPct: 0})
	if level != Green {
		t.Fatalf("expected Green, got %s", level)
	}
}

func TestComputeHealthLevelYellowOnMomentarySpike(t *testing.T) {
	level, _ := ComputeHealthLevel(HealthSignals{WBQDepthPct: 85, WBQOver80ForS: 5})
	if level != Yellow {
		t.Fatalf("expected Yellow, got %s", level)
	}
}

func TestComputeHealthLevelRedOnSustainedPressure(t *testing.T) {
	level, _ := ComputeHealthLevel(HealthSignals{CommitDepthPct: 95, CommitOver80ForS: 45})
	if level != Red {
		t.Fatalf("expected Red, got %s", level)
	}
}

func TestRegistrySignalsTracksOver80Duration(t *testing.T) {
	r := NewRegistry()
	r.SetQueueDepths(90, 0)
	s := r.Signals(0, time.Now())
	if s.WBQDepthPct != 90 {
		t.Fatalf("expected wbq depth 90, got %v", s.WBQDepthPct)
	}
	if s.WBQOver80ForS != 0 {
		t.Fatalf("expected first observation to report 0s over80, got %v", s.WBQOver80ForS)
	}
	later := r.Signals(0, time.Now().Add(45*time.Second))
	if later.WBQOver80ForS < 44 {
		t.Fatalf("expected sustained over80 duration >= 44s, got %v", later.WBQOver80ForS)
	}
}
