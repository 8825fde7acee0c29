// Package metrics provides Prometheus metrics for the bottlederby scoreboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Business metrics - bottles and score events
	bottlesAdded    *prometheus.CounterVec
	eventsWritten   prometheus.Counter
	eventsDuplicate prometheus.Counter
	writeErrors     prometheus.Counter

	// Aggregation metrics - daily stats and cache behavior
	aggregateQueries prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	cacheEvictions   prometheus.Counter
	aggregateLatency prometheus.Histogram

	// Store metrics
	storeOpLatency *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec
	storeEvents    prometheus.Gauge

	// Ingest queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter

	// Live feed metrics
	liveClients    prometheus.Gauge
	liveBroadcasts prometheus.Counter
	liveDropped    prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "derby",
		subsystem:        "scoreboard",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all Prometheus metrics on the configured registry.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.bottlesAdded = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bottles_added_total",
		Help:      "Total number of bottle increments, labeled by team",
	}, []string{"team"})

	m.eventsWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_written_total",
		Help:      "Total number of score events appended to the store",
	})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of duplicate ingest events detected",
	})

	m.writeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "write_errors_total",
		Help:      "Total number of failed score event writes",
	})

	m.aggregateQueries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_queries_total",
		Help:      "Total number of daily aggregate requests",
	})

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_cache_hits_total",
		Help:      "Daily aggregate requests served from the cache",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_cache_misses_total",
		Help:      "Daily aggregate requests that had to query the store",
	})

	m.cacheEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_cache_evictions_total",
		Help:      "Cache entries evicted after the freshness window elapsed",
	})

	m.aggregateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "aggregate_latency_milliseconds",
		Help:      "Histogram of daily aggregate computation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeOpLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_op_latency_milliseconds",
		Help:      "Histogram of score store operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"op"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of score store errors, labeled by operation",
	}, []string{"op"})

	m.storeEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_events",
		Help:      "Current number of score events in the store",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_queue_size",
		Help:      "Current number of queued ingest events",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_queue_capacity",
		Help:      "Configured capacity of the ingest queue",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ingest_queue_enqueue_errors_total",
		Help:      "Total number of rejected enqueue attempts",
	})

	m.liveClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_clients",
		Help:      "Current number of connected websocket clients",
	})

	m.liveBroadcasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_broadcasts_total",
		Help:      "Total number of score events broadcast to live clients",
	})

	m.liveDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "live_dropped_clients_total",
		Help:      "Total number of live clients dropped for slow consumption",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "Histogram of HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})
}

// GetRegistry returns the registry metrics are collected on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers operating on the global manager.

// RecordBottleAdded increments the per-team bottle counter.
func RecordBottleAdded(team string) {
	if globalManager != nil {
		globalManager.bottlesAdded.WithLabelValues(team).Inc()
	}
}

// RecordEventWritten increments the written score event counter.
func RecordEventWritten() {
	if globalManager != nil {
		globalManager.eventsWritten.Inc()
	}
}

// RecordEventDuplicate increments the duplicate ingest counter.
func RecordEventDuplicate() {
	if globalManager != nil {
		globalManager.eventsDuplicate.Inc()
	}
}

// RecordWriteError increments the failed write counter.
func RecordWriteError() {
	if globalManager != nil {
		globalManager.writeErrors.Inc()
	}
}

// RecordAggregateQuery increments the daily aggregate request counter.
func RecordAggregateQuery() {
	if globalManager != nil {
		globalManager.aggregateQueries.Inc()
	}
}

// RecordCacheHit increments the aggregate cache hit counter.
func RecordCacheHit() {
	if globalManager != nil {
		globalManager.cacheHits.Inc()
	}
}

// RecordCacheMiss increments the aggregate cache miss counter.
func RecordCacheMiss() {
	if globalManager != nil {
		globalManager.cacheMisses.Inc()
	}
}

// RecordCacheEviction increments the aggregate cache eviction counter.
func RecordCacheEviction() {
	if globalManager != nil {
		globalManager.cacheEvictions.Inc()
	}
}

// RecordAggregateLatency records aggregate computation latency in milliseconds.
func RecordAggregateLatency(ms float64) {
	if globalManager != nil {
		globalManager.aggregateLatency.Observe(ms)
	}
}

// RecordStoreOpLatency records store operation latency in milliseconds.
func RecordStoreOpLatency(op string, ms float64) {
	if globalManager != nil {
		globalManager.storeOpLatency.WithLabelValues(op).Observe(ms)
	}
}

// RecordStoreError increments the store error counter for an operation.
func RecordStoreError(op string) {
	if globalManager != nil {
		globalManager.storeErrors.WithLabelValues(op).Inc()
	}
}

// UpdateStoreEvents sets the current store event count.
func UpdateStoreEvents(n int) {
	if globalManager != nil {
		globalManager.storeEvents.Set(float64(n))
	}
}

// UpdateQueueSize sets the current ingest queue size.
func UpdateQueueSize(n int) {
	if globalManager != nil {
		globalManager.queueSize.Set(float64(n))
	}
}

// UpdateQueueCapacity sets the configured ingest queue capacity.
func UpdateQueueCapacity(n int) {
	if globalManager != nil {
		globalManager.queueCapacity.Set(float64(n))
	}
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	if globalManager != nil {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// UpdateLiveClients sets the connected websocket client count.
func UpdateLiveClients(n int) {
	if globalManager != nil {
		globalManager.liveClients.Set(float64(n))
	}
}

// RecordLiveBroadcast increments the broadcast counter.
func RecordLiveBroadcast() {
	if globalManager != nil {
		globalManager.liveBroadcasts.Inc()
	}
}

// RecordLiveDroppedClient increments the slow-client eviction counter.
func RecordLiveDroppedClient() {
	if globalManager != nil {
		globalManager.liveDropped.Inc()
	}
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager != nil {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request latency in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	if globalManager != nil {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
	}
}

// UpdateSystemMemoryUsage sets the allocated memory gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager != nil {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	if globalManager != nil {
		globalManager.systemGoroutineCount.Set(float64(n))
	}
}
