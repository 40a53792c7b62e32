// Package metrics exposes Prometheus collectors for the menu sync.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_fetches_total",
			Help: "Total number of upstream fetches, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	observationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_observations_total",
			Help: "Total number of dish observations reconciled, labeled by location.",
		},
		[]string{"location"},
	)

	opsQueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "menusync_ops_queued_total",
			Help: "Total number of merge writes queued into batches.",
		},
	)

	batchCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_batch_commits_total",
			Help: "Total number of batch commits, labeled by outcome (ok, failed, quota).",
		},
		[]string{"outcome"},
	)

	batchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "menusync_batch_size_ops",
			Help:    "Histogram of operations per committed batch.",
			Buckets: []float64{1, 10, 50, 100, 200, 400, 500},
		},
	)

	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_runs_total",
			Help: "Total number of ingestion runs, labeled by kind and status.",
		},
		[]string{"kind", "status"},
	)

	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "menusync_run_duration_seconds",
			Help:    "Histogram of ingestion run durations, labeled by kind.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "menusync_http_requests_total",
			Help: "Total number of HTTP requests served, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "menusync_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "menusync_rate_limit_delay_seconds",
			Help:    "Histogram of time spent waiting on the per-host pacer, labeled by host.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"host"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one upstream fetch.
func ObserveFetch(source string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	fetchesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveObservations adds reconciled observations for a location.
func ObserveObservations(location string, n int) {
	if n > 0 {
		observationsTotal.WithLabelValues(location).Add(float64(n))
	}
}

// ObserveOpQueued counts one queued merge write.
func ObserveOpQueued() {
	opsQueuedTotal.Inc()
}

// ObserveCommit records a batch commit attempt.
func ObserveCommit(outcome string, ops int) {
	batchCommitsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		batchSize.Observe(float64(ops))
	}
}

// ObserveRun records a finished run.
func ObserveRun(kind, status string, duration time.Duration) {
	runsTotal.WithLabelValues(kind, status).Inc()
	runDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records time spent waiting for a host's pacer.
func ObserveRateLimitDelay(host string, delay time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(delay.Seconds())
}
