// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DealsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_deals_generated_total",
			Help: "Total number of deals generated from recurring series",
		},
		[]string{"frequency"},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_generation_failures_total",
			Help: "Total number of failed generation attempts",
		},
		[]string{"error_code"},
	)

	SeriesAutoPaused = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_series_auto_paused_total",
			Help: "Total number of series paused after repeated failures",
		},
	)

	SeriesCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_series_completed_total",
			Help: "Total number of series that reached their end condition",
		},
	)

	CyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_cycles_skipped_total",
			Help: "Total number of missed cycles skipped while rescheduling",
		},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "scheduler_scan_duration_seconds",
			Help: "Duration of a full due-series scan in seconds",
		},
		[]string{"scan_type"},
	)

	SeriesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_series_in_flight",
			Help: "Number of series currently being processed",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"kind", "channel"},
	)
)
