package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Compaction cycle metrics
	CompactionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lakeside_compaction_duration_seconds",
			Help:    "Time taken for one compaction run, snapshot through release",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	CompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakeside_compactions_total",
			Help: "Total number of compaction runs by outcome",
		},
		[]string{"outcome"}, // committed, empty, busy, failed
	)

	FilesCompactedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_files_compacted_total",
			Help: "Total number of staging objects folded into artifacts",
		},
	)

	RowsCompactedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_rows_compacted_total",
			Help: "Total number of records folded into artifacts",
		},
	)

	ArtifactBytesPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_artifact_bytes_published_total",
			Help: "Total bytes written to parquet/ across all compactions",
		},
	)

	PartitionsPerCompaction = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lakeside_partitions_per_compaction",
			Help:    "Number of distinct partitions touched by a compaction run",
			Buckets: prometheus.LinearBuckets(1, 2, 10),
		},
	)

	// Coordinator metrics
	CoordinatorBusyRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_coordinator_busy_total",
			Help: "Total number of tryAcquire calls rejected because the lock was held",
		},
	)

	CoordinatorStaleRecoveries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_coordinator_stale_recoveries_total",
			Help: "Total number of times a stale lock was recovered on instance load",
		},
	)

	// Transaction log metrics
	LogAppendRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_log_append_retries_total",
			Help: "Total number of CAS retries taken by txlog.Append",
		},
	)

	LogVersionGaps = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lakeside_log_version_gaps",
			Help: "Number of missing versions observed on the last readAll",
		},
	)

	// Post-commit anomaly metrics
	PublishDeferredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_publish_deferred_total",
			Help: "Total number of artifacts whose publish failed after log commit",
		},
	)

	ReclaimDeferredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lakeside_reclaim_deferred_total",
			Help: "Total number of staging deletes that failed after log commit",
		},
	)

	OrphanCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lakeside_orphan_count",
			Help: "Number of orphaned staging objects detected by the last reconcile",
		},
	)

	// HTTP surface metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lakeside_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lakeside_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		CompactionDuration,
		CompactionsTotal,
		FilesCompactedTotal,
		RowsCompactedTotal,
		ArtifactBytesPublishedTotal,
		PartitionsPerCompaction,
		CoordinatorBusyRejections,
		CoordinatorStaleRecoveries,
		LogAppendRetries,
		LogVersionGaps,
		PublishDeferredTotal,
		ReclaimDeferredTotal,
		OrphanCount,
		APIRequestsTotal,
		APIRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
