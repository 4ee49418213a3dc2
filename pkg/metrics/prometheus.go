// Package metrics provides Prometheus metrics for the coach matching service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
	defaultNamespace       = "coachmatch"
	defaultSubsystem       = "engine"
)

// Match outcome label values.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeScored   = "scored"
	OutcomeFallback = "fallback"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Embedding call result label values.
const (
	EmbedSuccess  = "success"
	EmbedFailure  = "failure"
	EmbedRejected = "rejected"
)

// Manager manages all Prometheus metrics for the matching service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Match pipeline
	matchRequests      *prometheus.CounterVec
	matchLatency       prometheus.Histogram
	scoringLatency     prometheus.Histogram
	candidateCount     prometheus.Histogram
	inflightGauge      prometheus.Gauge
	collapsedRequests  prometheus.Counter
	fallbackByReason   *prometheus.CounterVec
	skippedCandidates  prometheus.Counter

	// Embedding provider
	embeddingCalls   *prometheus.CounterVec
	embeddingLatency prometheus.Histogram
	embeddingTexts   prometheus.Counter
	breakerState     *prometheus.GaugeVec
	breakerChanges   *prometheus.CounterVec

	// Result cache
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheWrites        *prometheus.CounterVec
	cacheInvalidations prometheus.Counter
	cacheErrors        *prometheus.CounterVec
	cacheEntries       prometheus.Gauge
	cacheExpired       prometheus.Counter

	// Profile events
	profileEvents *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.matchRequests = m.counterVec("match_requests_total", "Match requests by outcome", "outcome")
	m.matchLatency = m.histogram("match_latency_milliseconds", "End-to-end match request latency in milliseconds", m.histogramBuckets)
	m.scoringLatency = m.histogram("scoring_stage_latency_milliseconds", "Latency of the bounded scoring stage in milliseconds", m.histogramBuckets)
	m.candidateCount = m.histogram("candidates_per_request", "Number of eligible coaches scored per request",
		[]float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000})
	m.inflightGauge = m.gauge("inflight_computations", "Match computations currently running")
	m.collapsedRequests = m.counter("collapsed_requests_total", "Requests that joined an in-flight computation for the same key")
	m.fallbackByReason = m.counterVec("fallback_total", "Fallback rankings produced, by reason", "reason")
	m.skippedCandidates = m.counter("skipped_candidates_total", "Coach records dropped because they failed validation")

	m.embeddingCalls = m.counterVec("embedding_calls_total", "Batched embedding provider calls by result", "result")
	m.embeddingLatency = m.histogram("embedding_latency_milliseconds", "Embedding provider call latency in milliseconds", m.histogramBuckets)
	m.embeddingTexts = m.counter("embedding_texts_total", "Texts submitted to the embedding provider")
	m.breakerState = m.gaugeVecWith(auto, "circuit_breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "name")
	m.breakerChanges = m.counterVec("circuit_breaker_transitions_total", "Circuit breaker state transitions", "name", "from", "to")

	m.cacheHits = m.counter("cache_hits_total", "Result cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Result cache misses")
	m.cacheWrites = m.counterVec("cache_writes_total", "Result cache writes by kind", "kind")
	m.cacheInvalidations = m.counter("cache_invalidations_total", "Explicit client cache invalidations")
	m.cacheErrors = m.counterVec("cache_errors_total", "Result cache errors by operation", "op")
	m.cacheEntries = m.gauge("cache_entries", "Live result cache entries")
	m.cacheExpired = m.counter("cache_expired_total", "Entries evicted lazily after their TTL elapsed")

	m.profileEvents = m.counterVec("profile_events_total", "Profile update events consumed", "topic", "result")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("error_latency_milliseconds"),
		Help:        "Latency of operations that resulted in errors",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

func (m *Manager) gaugeVecWith(auto promauto.Factory, name, help string, labels ...string) *prometheus.GaugeVec {
	return auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

// Match pipeline.

// RecordMatchRequest counts a finished match request by outcome.
func RecordMatchRequest(outcome string) {
	globalManager.matchRequests.WithLabelValues(outcome).Inc()
}

// RecordMatchLatency records end-to-end match latency in milliseconds.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordScoringLatency records scoring stage latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordCandidateCount records how many coaches were eligible for scoring.
func RecordCandidateCount(n int) {
	globalManager.candidateCount.Observe(float64(n))
}

// UpdateInflight sets the number of running computations.
func UpdateInflight(n int64) {
	globalManager.inflightGauge.Set(float64(n))
}

// RecordCollapsedRequest counts a request served by another request's computation.
func RecordCollapsedRequest() {
	globalManager.collapsedRequests.Inc()
}

// RecordFallback counts a fallback ranking by reason (timeout, provider_error).
func RecordFallback(reason string) {
	globalManager.fallbackByReason.WithLabelValues(reason).Inc()
}

// RecordSkippedCandidate counts a malformed coach record that was dropped.
func RecordSkippedCandidate() {
	globalManager.skippedCandidates.Inc()
}

// Embedding provider.

// RecordEmbeddingCall counts a provider call by result.
func RecordEmbeddingCall(result string) {
	globalManager.embeddingCalls.WithLabelValues(result).Inc()
}

// RecordEmbeddingLatency records provider call latency in milliseconds.
func RecordEmbeddingLatency(latencyMs float64) {
	globalManager.embeddingLatency.Observe(latencyMs)
}

// RecordEmbeddingTexts counts texts sent in one batch.
func RecordEmbeddingTexts(n int) {
	globalManager.embeddingTexts.Add(float64(n))
}

// UpdateBreakerState sets the breaker state gauge for name.
func UpdateBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// RecordBreakerTransition counts a breaker state transition.
func RecordBreakerTransition(name, from, to string) {
	globalManager.breakerChanges.WithLabelValues(name, from, to).Inc()
}

// Result cache.

// RecordCacheHit increments cache hits.
func RecordCacheHit() { globalManager.cacheHits.Inc() }

// RecordCacheMiss increments cache misses.
func RecordCacheMiss() { globalManager.cacheMisses.Inc() }

// RecordCacheWrite counts a write; kind is "scored", "degraded" or "fallback".
func RecordCacheWrite(kind string) {
	globalManager.cacheWrites.WithLabelValues(kind).Inc()
}

// RecordCacheInvalidation increments explicit invalidations.
func RecordCacheInvalidation() { globalManager.cacheInvalidations.Inc() }

// RecordCacheError counts a cache failure for op (get, put, invalidate).
func RecordCacheError(op string) {
	globalManager.cacheErrors.WithLabelValues(op).Inc()
}

// UpdateCacheEntries sets the live entry gauge.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// RecordCacheExpired counts a lazily evicted entry.
func RecordCacheExpired() { globalManager.cacheExpired.Inc() }

// Profile events.

// RecordProfileEvent counts a consumed profile event.
func RecordProfileEvent(topic, result string) {
	globalManager.profileEvents.WithLabelValues(topic, result).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Elapsed returns milliseconds since start, the unit every latency metric uses.
func Elapsed(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
