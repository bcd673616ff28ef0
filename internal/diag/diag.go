// Package diag serves the operator-facing diagnostics HTTP surface:
// /healthz, /metrics (Prometheus exposition), and /diag/report (a
// human-readable JSON snapshot of lock contention and queue depth).
// Grounded on the teacher's since-removed internal/server dashboard
// router, which mounted these same three concerns on a gorilla/mux
// router; rebuilt here scoped to the bus's own signals
// (internal/metrics.Registry, internal/lockorder.Registry) instead of
// Captain/WezTerm session state.
package diag

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentmail/bus/internal/lockorder"
	"github.com/agentmail/bus/internal/metrics"
)

// maxReportBytes bounds the JSON-encoded size of /diag/report; when the
// full report would exceed it, the lock section is dropped, and if the
// rest is still too large a small fallback error object is served
// instead. The report has no per-tool section, so no tool detail is
// truncated.
const maxReportBytes = 100 * 1024

// Server exposes the diagnostics HTTP surface.
type Server struct {
	metrics *metrics.Registry
	locks   *lockorder.Registry
	start   time.Time
}

// NewServer builds a diagnostics server over metricsReg and lockReg;
// either may be nil, in which case the corresponding report section is
// omitted.
func NewServer(metricsReg *metrics.Registry, lockReg *lockorder.Registry) *Server {
	return &Server{metrics: metricsReg, locks: lockReg, start: time.Now()}
}

// Router builds the mux.Router serving this diagnostics surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Gatherer(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/diag/report", s.handleReport).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	level := metrics.Green
	if s.metrics != nil {
		level, _ = metrics.ComputeHealthLevel(s.metrics.Signals(0, time.Now()))
	}
	w.Header().Set("Content-Type", "application/json")
	if level == metrics.Red {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     level,
		"uptime_s":   time.Since(s.start).Seconds(),
	})
}

// reportSection is one named, independently truncatable part of the
// diagnostic report.
type reportSection struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

func (s *Server) buildReport() map[string]interface{} {
	report := map[string]interface{}{
		"uptime_s":   time.Since(s.start).Seconds(),
		"generated_at": time.Now().UTC().Format(time.RFC3339),
	}
	if s.metrics != nil {
		level, signals := metrics.ComputeHealthLevel(s.metrics.Signals(0, time.Now()))
		report["health"] = map[string]interface{}{"level": level, "signals": signals}
	}
	if s.locks != nil {
		report["locks"] = s.locks.Snapshot()
	}
	return report
}

// handleReport serves the assembled diagnostic report, truncating
// detail sections (locks, then falling back to a minimal summary) when
// the full encoding would exceed maxReportBytes. This never panics or
// 500s on an oversized report: it degrades to a guaranteed-small
// fallback error object instead.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report := s.buildReport()
	body, err := json.Marshal(report)
	if err == nil && len(body) <= maxReportBytes {
		writeJSON(w, http.StatusOK, body)
		return
	}

	// First truncation: drop lock detail, keep health summary.
	delete(report, "locks")
	body, err = json.Marshal(report)
	if err == nil && len(body) <= maxReportBytes {
		writeJSON(w, http.StatusOK, body)
		return
	}

	// Still too large (or failed to marshal): serve a minimal,
	// guaranteed-small fallback rather than an oversized or broken body.
	fallback, _ := json.Marshal(map[string]interface{}{
		"error":   "report_too_large",
		"message": "diagnostic report exceeded size cap even after truncation",
	})
	writeJSON(w, http.StatusOK, fallback)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
