package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the alternate props ingestion service

var (
	// Odds API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_api_calls_total",
			Help: "Total number of odds API calls",
		},
		[]string{"endpoint", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "altprops_api_call_duration_seconds",
			Help:    "Duration of odds API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_api_retries_total",
			Help: "Total number of retried odds API attempts",
		},
		[]string{"endpoint"},
	)

	APIRequestsRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altprops_api_requests_remaining",
			Help: "Remaining odds API quota as reported by the provider",
		},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "altprops_db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altprops_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altprops_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "altprops_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "altprops_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "altprops_cache_operation_duration_seconds",
			Help:    "Duration of cache operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// Normalization metrics
	OutcomesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_outcomes_dropped_total",
			Help: "Total number of raw outcomes skipped during grouping",
		},
		[]string{"reason"},
	)

	LinesFilteredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_lines_filtered_total",
			Help: "Total number of grouped lines removed by the side policy",
		},
		[]string{"policy"},
	)

	// Ingest run metrics
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_ingest_runs_total",
			Help: "Total number of ingest runs",
		},
		[]string{"status"},
	)

	IngestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "altprops_ingest_run_duration_seconds",
			Help:    "Duration of ingest runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	LinesUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "altprops_lines_upserted_total",
			Help: "Total number of odds lines upserted",
		},
	)

	SnapshotsArchivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_snapshots_archived_total",
			Help: "Total number of run snapshots written to object storage",
		},
		[]string{"status"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "altprops_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// Scheduler metrics
	SchedulerSkippedTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "altprops_scheduler_skipped_ticks_total",
			Help: "Total number of cron ticks skipped because a run was in progress",
		},
	)

	LastSuccessfulRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altprops_last_successful_run_timestamp",
			Help: "Timestamp of last successful ingest run",
		},
	)

	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "altprops_system_uptime_seconds",
			Help: "Worker uptime in seconds",
		},
	)
)

// RecordAPICall records an API call metric
func RecordAPICall(endpoint, status string, duration float64) {
	APICallsTotal.WithLabelValues(endpoint, status).Inc()
	APICallDuration.WithLabelValues(endpoint).Observe(duration)
}

// RecordAPIRetry records a retried API attempt
func RecordAPIRetry(endpoint string) {
	APIRetriesTotal.WithLabelValues(endpoint).Inc()
}

// RecordRequestsRemaining updates the provider quota gauge
func RecordRequestsRemaining(remaining int) {
	APIRequestsRemaining.Set(float64(remaining))
}

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheHit records a cache hit
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordCacheOperation records a cache operation duration
func RecordCacheOperation(operation string, duration float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordOutcomeDropped records a raw outcome skipped during grouping
func RecordOutcomeDropped(reason string) {
	OutcomesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordLinesFiltered records grouped lines removed by the side policy
func RecordLinesFiltered(policy string, count int) {
	if count <= 0 {
		return
	}
	LinesFilteredTotal.WithLabelValues(policy).Add(float64(count))
}

// RecordIngestRun records an ingest run
func RecordIngestRun(status string, duration float64) {
	IngestRunsTotal.WithLabelValues(status).Inc()
	IngestRunDuration.Observe(duration)

	if status == "success" {
		LastSuccessfulRun.SetToCurrentTime()
	}
}

// RecordLinesUpserted records persisted lines
func RecordLinesUpserted(count int) {
	LinesUpsertedTotal.Add(float64(count))
}

// RecordSnapshotArchived records a snapshot upload attempt
func RecordSnapshotArchived(status string) {
	SnapshotsArchivedTotal.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// RecordSkippedTick records a cron tick skipped due to an in-flight run
func RecordSkippedTick() {
	SchedulerSkippedTicks.Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
