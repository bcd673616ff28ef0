// Package metrics exposes typed aggregate snapshots (HTTP, tools, DB
// pool, storage/WBQ/commit, search, system) and the Green/Yellow/Red
// health classifier derived from them. Counters and histograms are
// backed by github.com/prometheus/client_golang so values are exported
// on the same diagnostics surface the teacher's dashboard server
// registers its routes on (internal/server), instead of the teacher's
// hand-rolled atomics-only Collector.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthLevel is the overall classification of system health.
type HealthLevel string

const (
	Green  HealthLevel = "green"
	Yellow HealthLevel = "yellow"
	Red    HealthLevel = "red"
)

// HealthSignals is the raw input to the health classifier.
type HealthSignals struct {
	PoolAcquireP95US    float64
	PoolUtilizationPct  float64
	PoolOver80ForS      float64
	WBQDepthPct         float64
	WBQOver80ForS       float64
	CommitDepthPct      float64
	CommitOver80ForS    float64
}

// hysteresisThresholdS is how long a signal must stay above 80% before
// it counts toward a Red classification rather than Yellow.
const hysteresisThresholdS = 30.0

// ComputeHealthLevel classifies signals into Green/Yellow/Red using
// hysteresis over the *_over_80_for_s counters: any signal sustained
// above 80% for at least hysteresisThresholdS seconds is Red; any signal
// merely above 80% momentarily is Yellow; otherwise Green.
func ComputeHealthLevel(s HealthSignals) (HealthLevel, HealthSignals) {
	sustained := s.PoolOver80ForS >= hysteresisThresholdS ||
		s.WBQOver80ForS >= hysteresisThresholdS ||
		s.CommitOver80ForS >= hysteresisThresholdS
	if sustained {
		return Red, s
	}

	momentary := s.PoolUtilizationPct >= 80 || s.WBQDepthPct >= 80 || s.CommitDepthPct >= 80 ||
		s.PoolOver80ForS > 0 || s.WBQOver80ForS > 0 || s.CommitOver80ForS > 0
	if momentary {
		return Yellow, s
	}
	return Green, s
}

// Registry holds the process-wide prometheus collectors, facading them
// behind names matching the teacher's Collector call-site shape
// (UpdateX/GetX) so tool-handler code reads familiarly.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests   *prometheus.CounterVec
	HTTPLatency    *prometheus.HistogramVec
	ToolCalls      *prometheus.CounterVec
	ToolErrors     *prometheus.CounterVec
	PoolAcquireUS  prometheus.Histogram
	PoolInUse      prometheus.Gauge
	PoolMax        prometheus.Gauge
	WBQDepth       prometheus.Gauge
	CommitDepth    prometheus.Gauge
	SearchLatency  *prometheus.HistogramVec
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec

	mu          sync.Mutex
	over80Since map[string]time.Time

	shadow struct {
		poolInUse, poolMax     float64
		wbqDepth, commitDepth  float64
	}
}

// NewRegistry constructs and registers all collectors on a fresh
// prometheus.Registry (not the global default, so multiple instances
// can coexist in tests).
func NewRegistry() *Registry {
	r := &Registry{
		reg:         prometheus.NewRegistry(),
		over80Since: make(map[string]time.Time),
	}

	r.HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_http_requests_total",
		Help: "Total HTTP requests by route and status.",
	}, []string{"route", "status"})

	r.HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "agentmail_http_latency_seconds",
		Help: "HTTP handler latency.",
	}, []string{"route"})

	r.ToolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_tool_calls_total",
		Help: "MCP tool calls by tool name.",
	}, []string{"tool"})

	r.ToolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_tool_errors_total",
		Help: "MCP tool errors by tool name and error kind.",
	}, []string{"tool", "kind"})

	r.PoolAcquireUS = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentmail_pool_acquire_microseconds",
		Help:    "DB connection pool acquire latency.",
		Buckets: prometheus.ExponentialBuckets(10, 2, 14),
	})

	r.PoolInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentmail_pool_in_use",
		Help: "Connections currently checked out of the pool.",
	})
	r.PoolMax = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentmail_pool_max",
		Help: "Configured maximum pool size.",
	})
	r.WBQDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentmail_wbq_depth",
		Help: "Current write-back queue depth.",
	})
	r.CommitDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentmail_commit_queue_depth",
		Help: "Current commit queue depth.",
	})

	r.SearchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "agentmail_search_latency_seconds",
		Help: "Search pipeline stage latency.",
	}, []string{"stage"})

	r.CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_cache_hits_total",
		Help: "Read cache hits by category.",
	}, []string{"category"})
	r.CacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmail_cache_misses_total",
		Help: "Read cache misses by category.",
	}, []string{"category"})

	r.reg.MustRegister(r.HTTPRequests, r.HTTPLatency, r.ToolCalls, r.ToolErrors,
		r.PoolAcquireUS, r.PoolInUse, r.PoolMax, r.WBQDepth, r.CommitDepth,
		r.SearchLatency, r.CacheHits, r.CacheMisses)

	return r
}

// Gatherer exposes the underlying prometheus.Gatherer for /metrics.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// trackOver80 returns how long (seconds) signal has been continuously
// at or above 80, given its current value. Call once per tick per
// signal name.
func (r *Registry) trackOver80(name string, value float64, now time.Time) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if value >= 80 {
		since, ok := r.over80Since[name]
		if !ok {
			r.over80Since[name] = now
			return 0
		}
		return now.Sub(since).Seconds()
	}
	delete(r.over80Since, name)
	return 0
}

// SetPoolStats records current pool occupancy, updating both the
// exported gauges and the shadow values Signals reads back.
func (r *Registry) SetPoolStats(inUse, max float64) {
	r.PoolInUse.Set(inUse)
	r.PoolMax.Set(max)
	r.mu.Lock()
	r.shadow.poolInUse, r.shadow.poolMax = inUse, max
	r.mu.Unlock()
}

// SetQueueDepths records current WBQ/commit queue depth percentages.
func (r *Registry) SetQueueDepths(wbqPct, commitPct float64) {
	r.WBQDepth.Set(wbqPct)
	r.CommitDepth.Set(commitPct)
	r.mu.Lock()
	r.shadow.wbqDepth, r.shadow.commitDepth = wbqPct, commitPct
	r.mu.Unlock()
}

// Signals assembles HealthSignals from current shadow gauge values,
// updating the hysteresis trackers as of now.
func (r *Registry) Signals(poolAcquireP95US float64, now time.Time) HealthSignals {
	r.mu.Lock()
	poolUtil := 0.0
	if r.shadow.poolMax > 0 {
		poolUtil = r.shadow.poolInUse / r.shadow.poolMax * 100
	}
	wbqDepth := r.shadow.wbqDepth
	commitDepth := r.shadow.commitDepth
	r.mu.Unlock()

	return HealthSignals{
		PoolAcquireP95US:   poolAcquireP95US,
		PoolUtilizationPct: poolUtil,
		PoolOver80ForS:     r.trackOver80("pool", poolUtil, now),
		WBQDepthPct:        wbqDepth,
		WBQOver80ForS:      r.trackOver80("wbq", wbqDepth, now),
		CommitDepthPct:     commitDepth,
		CommitOver80ForS:   r.trackOver80("commit", commitDepth, now),
	}
}
