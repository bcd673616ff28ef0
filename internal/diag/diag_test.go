package diag

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentmail/bus/internal/lockorder"
	"github.com/agentmail/bus/internal/metrics"
)

func TestHealthzReturnsGreenWhenNoMetrics(t *testing.T) {
	s := NewServer(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthzReturns503WhenRed(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.SetPoolStats(95, 100)
	for i := 0; i < 31; i++ {
		reg.Signals(0, fixedTime(i))
	}
	s := NewServer(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once sustained, got %d", rec.Code)
	}
}

func TestMetricsEndpointServesPrometheusExposition(t *testing.T) {
	reg := metrics.NewRegistry()
	s := NewServer(reg, nil)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDiagReportIncludesLockSnapshot(t *testing.T) {
	locks := lockorder.NewRegistry(false)
	locks.New("store", 1)
	s := NewServer(nil, locks)
	req := httptest.NewRequest(http.MethodGet, "/diag/report", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(rec.Body.Bytes()) > maxReportBytes {
		t.Fatalf("report exceeded cap: %d bytes", rec.Body.Len())
	}
}

func TestDiagReportFallsBackWhenOversized(t *testing.T) {
	locks := lockorder.NewRegistry(false)
	for i := 0; i < 5000; i++ {
		locks.New(padName(i), i)
	}
	s := NewServer(nil, locks)
	req := httptest.NewRequest(http.MethodGet, "/diag/report", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 even when falling back, got %d", rec.Code)
	}
	if rec.Body.Len() > maxReportBytes {
		t.Fatalf("fallback body still exceeds cap: %d bytes", rec.Body.Len())
	}
}

func padName(i int) string {
	out := make([]byte, 0, 64)
	for j := 0; j < 60; j++ {
		out = append(out, byte('a'+(i+j)%26))
	}
	return string(out)
}

// fixedTimeBase lies a minute in the past, so a series that starts at
// fixedTime(0) has already been over 80% for longer than the 30 s
// hysteresis threshold when the handler samples at the real time.Now().
var fixedTimeBase = time.Now().Add(-time.Minute)

func fixedTime(offsetSeconds int) time.Time {
	return fixedTimeBase.Add(time.Duration(offsetSeconds) * time.Second)
}
