// Package metrics provides Prometheus metrics for the scorecard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are milliseconds; imports of a few thousand rows land in the upper buckets.
var latencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // static bucket layout

// Manager owns every Prometheus collector of the scorecard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scorecard writes
	scorecardUpserts      prometheus.Counter
	scorecardUpsertErrors prometheus.Counter
	upsertLatency         prometheus.Histogram

	// Read-through cache
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	cacheInvalidations *prometheus.CounterVec
	cacheEntries       prometheus.Gauge

	// Bulk import / export
	importRows       *prometheus.CounterVec
	importJobs       *prometheus.CounterVec
	importDuration   prometheus.Histogram
	importDuplicates prometheus.Counter
	exportRecords    prometheus.Counter

	// Roll-ups
	rollupLatency *prometheus.HistogramVec

	// Import job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec

	// Import workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "scorecard",
		subsystem:        "engine",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.scorecardUpserts = m.counter("scorecard_upserts_total", "Scorecard records written (insert or overwrite)")
	m.scorecardUpsertErrors = m.counter("scorecard_upsert_errors_total", "Scorecard writes that failed")
	m.upsertLatency = m.histogram("scorecard_upsert_latency_milliseconds", "Latency of a single scorecard upsert")

	m.cacheHits = m.counterVec("cache_hits_total", "Read-through cache hits by key family", "family")
	m.cacheMisses = m.counterVec("cache_misses_total", "Read-through cache misses by key family", "family")
	m.cacheInvalidations = m.counterVec("cache_invalidations_total", "Cache entries removed by invalidation", "kind")
	m.cacheEntries = m.gauge("cache_entries", "Entries currently held by the read-through cache")

	m.importRows = m.counterVec("import_rows_total", "Imported spreadsheet rows by outcome", "status")
	m.importJobs = m.counterVec("import_jobs_total", "Import jobs by final status", "status")
	m.importDuration = m.histogram("import_duration_milliseconds", "Wall time of one import run")
	m.importDuplicates = m.counter("import_duplicate_submissions_total", "Import submissions folded into an existing job")
	m.exportRecords = m.counter("export_records_total", "Records rendered by exports")

	m.rollupLatency = m.histogramVec("rollup_latency_milliseconds", "Roll-up computation latency", "level")

	m.queueSize = m.gauge("import_queue_size", "Import jobs waiting in the queue")
	m.queueCapacity = m.gauge("import_queue_capacity", "Maximum number of queued import jobs")
	m.queueEnqueueErrors = m.counterVec("import_queue_enqueue_errors_total", "Rejected enqueue attempts", "reason")

	m.workerCount = m.gauge("import_worker_count", "Running import workers")
	m.workerProcessingLatency = m.histogram("import_worker_processing_latency_milliseconds", "Time a worker spends on one job")
	m.workerErrors = m.counter("import_worker_errors_total", "Jobs a worker could not complete")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "route", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "route", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
}

// RecordScorecardUpsert counts a successful write and its latency.
func RecordScorecardUpsert(latencyMs float64) {
	globalManager.scorecardUpserts.Inc()
	globalManager.upsertLatency.Observe(latencyMs)
}

// RecordScorecardUpsertError counts a failed write.
func RecordScorecardUpsertError() {
	globalManager.scorecardUpsertErrors.Inc()
}

// RecordCacheHit counts a cache hit for the given key family.
func RecordCacheHit(family string) {
	globalManager.cacheHits.WithLabelValues(family).Inc()
}

// RecordCacheMiss counts a cache miss for the given key family.
func RecordCacheMiss(family string) {
	globalManager.cacheMisses.WithLabelValues(family).Inc()
}

// RecordCacheInvalidation counts removed entries; kind is "key" or "prefix".
func RecordCacheInvalidation(kind string, removed int) {
	globalManager.cacheInvalidations.WithLabelValues(kind).Add(float64(removed))
}

// UpdateCacheEntries sets the current number of cache entries.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// RecordImportRows counts rows by outcome ("imported" or "failed").
func RecordImportRows(status string, n int) {
	globalManager.importRows.WithLabelValues(status).Add(float64(n))
}

// RecordImportJob counts a finished job by status.
func RecordImportJob(status string) {
	globalManager.importJobs.WithLabelValues(status).Inc()
}

// RecordImportDuration records the duration of one import run.
func RecordImportDuration(latencyMs float64) {
	globalManager.importDuration.Observe(latencyMs)
}

// RecordImportDuplicate counts a submission folded into an existing job.
func RecordImportDuplicate() {
	globalManager.importDuplicates.Inc()
}

// RecordExportRecords counts exported records.
func RecordExportRecords(n int) {
	globalManager.exportRecords.Add(float64(n))
}

// RecordRollupLatency records roll-up latency for "team" or "manager".
func RecordRollupLatency(level string, latencyMs float64) {
	globalManager.rollupLatency.WithLabelValues(level).Observe(latencyMs)
}

// UpdateQueueSize sets the number of queued jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long a worker spent on one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a job a worker could not complete.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(route, method, statusCode string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
