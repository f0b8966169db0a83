// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokkosync_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// Feed client
	FeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_feed_requests_total",
			Help: "Total number of provider API requests",
		},
		[]string{"resource", "outcome"}, // outcome: success, network, status, malformed, rejected
	)

	FeedRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_feed_rate_limit_hits_total",
			Help: "Total number of HTTP 429 responses from the provider",
		},
		[]string{"resource"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tokkosync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Sync runs
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"outcome"}, // done, error, rejected
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokkosync_sync_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncEntitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_sync_entities_total",
			Help: "Total number of entities written by sync runs",
		},
		[]string{"entity"},
	)

	SyncItemErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_sync_item_errors_total",
			Help: "Total number of per-item errors during sync runs",
		},
		[]string{"entity"},
	)

	// Photo migration
	PhotoMigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_photo_migrations_total",
			Help: "Total number of photo migration attempts by outcome",
		},
		[]string{"outcome"}, // migrated, failed, skipped
	)

	PhotoDownloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tokkosync_photo_download_bytes",
			Help:    "Size of downloaded photos in bytes",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 7), // 16KiB .. 64MiB
		},
	)

	// Background worker
	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokkosync_worker_queue_depth",
			Help: "Number of tasks waiting in the background runner queue",
		},
	)

	WorkerTaskErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tokkosync_worker_task_errors_total",
			Help: "Total number of background tasks that returned an error",
		},
	)

	// Exchange rates
	RatesLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokkosync_rates_lookups_total",
			Help: "Total number of exchange rate lookups by source",
		},
		[]string{"source"}, // cache, primary, fallback, stale
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSyncRun records the outcome and duration of one sync run.
func RecordSyncRun(outcome string, duration time.Duration) {
	SyncRunsTotal.WithLabelValues(outcome).Inc()
	SyncDuration.Observe(duration.Seconds())
}
