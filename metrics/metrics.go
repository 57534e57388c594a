// Package metrics provides Prometheus metrics for the country leaders scraper.
// It tracks upstream API calls, session churn, enrichment outcomes and cache performance.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "country_leaders"
)

var (
	// ToolCallsTotal counts MCP tool calls by tool name and status
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tool_calls_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// ToolDuration measures tool call latency distribution
	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "tool_duration_seconds",
		Help:      "Tool call latency distribution by tool",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 300},
	}, []string{"tool"})

	// ToolsInFlight tracks currently executing tool calls
	ToolsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "tools_in_flight",
		Help:      "Number of tool calls currently being processed",
	}, []string{"tool"})

	// APIRequestsTotal counts upstream HTTP calls by upstream, endpoint and status
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_requests_total",
		Help:      "Upstream requests by upstream, endpoint and status",
	}, []string{"upstream", "endpoint", "status"})

	// APILatency measures upstream call latency
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "api_latency_seconds",
		Help:      "Upstream call latency by upstream and endpoint",
		Buckets:   prometheus.DefBuckets,
	}, []string{"upstream", "endpoint"})

	// APIRetries counts transport-level retries
	APIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "api_retries_total",
		Help:      "Transport retries by upstream",
	}, []string{"upstream"})

	// SessionAcquisitions counts cookie requests by outcome
	SessionAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "session_acquisitions_total",
		Help:      "Session cookie acquisitions by outcome",
	}, []string{"status"})

	// SessionRetries counts requests re-run after the session expired
	SessionRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "session_retries_total",
		Help:      "Requests retried after session expiry, by endpoint",
	}, []string{"endpoint"})

	// EnrichmentsTotal counts Wikipedia enrichment outcomes
	EnrichmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "enrichments_total",
		Help:      "Wikipedia intro enrichments by outcome",
	}, []string{"outcome"})

	// CountriesTotal counts per-country processing outcomes
	CountriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "countries_total",
		Help:      "Countries processed by outcome",
	}, []string{"outcome"})

	// LeadersEmitted counts leaders written to the result set per country
	LeadersEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "leaders_emitted_total",
		Help:      "Leaders added to the result set by country",
	}, []string{"country"})

	// RunDuration measures full pipeline runs
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "run_duration_seconds",
		Help:      "Full pipeline run duration",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	// CacheHits counts cache hits
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hit count",
	})

	// CacheMisses counts cache misses
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_misses_total",
		Help:      "Total cache miss count",
	})

	// CacheSize tracks current cache entry count
	CacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "cache_entries",
		Help:      "Current number of cache entries",
	})

	// RateLimitWaits counts requests delayed by the per-host limiter
	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_waits_total",
		Help:      "Requests that waited for the per-host rate limiter",
	}, []string{"upstream"})

	// CircuitState exposes breaker state (0 closed, 1 open, 2 half-open)
	CircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "circuit_state",
		Help:      "Circuit breaker state by upstream (0 closed, 1 open, 2 half-open)",
	}, []string{"upstream"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})

	// ContentSize tracks fetched page sizes
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Fetched response size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"upstream"})
)

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordToolCall records a completed MCP tool call with its duration and status
func RecordToolCall(tool string, duration float64, success bool) {
	ToolCallsTotal.WithLabelValues(tool, status(success)).Inc()
	ToolDuration.WithLabelValues(tool).Observe(duration)
}

// RecordAPICall records an upstream call. code is the HTTP status, or 0 for transport errors.
func RecordAPICall(upstream, endpoint string, duration float64, code int) {
	label := "error"
	switch {
	case code >= 200 && code < 300:
		label = "2xx"
	case code >= 400 && code < 500:
		label = "4xx"
	case code >= 500:
		label = "5xx"
	}
	APIRequestsTotal.WithLabelValues(upstream, endpoint, label).Inc()
	APILatency.WithLabelValues(upstream, endpoint).Observe(duration)
}

// RecordSessionAcquire records a cookie acquisition attempt
func RecordSessionAcquire(success bool) {
	SessionAcquisitions.WithLabelValues(status(success)).Inc()
}

// RecordEnrichment records an enrichment outcome: "ok", "not_found", "no_intro" or "error".
func RecordEnrichment(outcome string) {
	EnrichmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordCountry records a per-country outcome and how many leaders it produced.
func RecordCountry(country string, leaders int, success bool) {
	CountriesTotal.WithLabelValues(status(success)).Inc()
	if success {
		LeadersEmitted.WithLabelValues(country).Add(float64(leaders))
	}
}

// RecordCacheAccess records a cache hit or miss
func RecordCacheAccess(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// SetCacheSize updates the current cache size gauge
func SetCacheSize(size int) {
	CacheSize.Set(float64(size))
}

// CacheObserver adapts the cache metrics to infra.CacheObserver.
type CacheObserver struct{}

func (CacheObserver) CacheAccess(hit bool) { RecordCacheAccess(hit) }
func (CacheObserver) CacheSize(n int)      { SetCacheSize(n) }
