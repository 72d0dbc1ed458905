// Package metrics holds the Prometheus instruments for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotaConsumed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_quota_units_consumed",
			Help: "Quota units reserved in the current daily window",
		},
	)

	QuotaLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_quota_units_limit",
			Help: "Daily quota ceiling",
		},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_quota_rejections_total",
			Help: "Reservations refused because they would exceed the daily ceiling",
		},
	)

	QuotaResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_quota_resets_total",
			Help: "Number of daily quota window resets",
		},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_api_requests_total",
			Help: "Requests made to the video platform API",
		},
		[]string{"endpoint", "result"}, // result: "success", "failure", "rejected"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_api_request_duration_seconds",
			Help:    "Latency of video platform API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ingest_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_items_total",
			Help: "Items reconciled against storage",
		},
		[]string{"mode", "action"}, // action: "created", "updated", "failed"
	)

	TargetRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_target_runs_total",
			Help: "Per-target ingestion attempts",
		},
		[]string{"mode", "result"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_run_duration_seconds",
			Help:    "Duration of orchestrator runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"mode", "status"},
	)
)
