package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "golive_sessions_started_total",
			Help: "Total number of stream sessions opened",
		},
	)

	// reason: "stopped", "interrupted", "superseded"
	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_sessions_closed_total",
			Help: "Total number of stream sessions closed, by reason",
		},
		[]string{"reason"},
	)

	TrackingEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_tracking_events_dropped_total",
			Help: "Presence events dropped because the tracker could not apply them",
		},
		[]string{"operation"},
	)

	// outcome: "kept", "interrupted", "failed"
	RecoveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_recovery_sessions_total",
			Help: "Open sessions examined by crash recovery, by outcome",
		},
		[]string{"outcome"},
	)

	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_reports_total",
			Help: "Reports generated, by kind and result",
		},
		[]string{"kind", "result"},
	)

	ReportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "golive_report_duration_seconds",
			Help:    "Time to build and deliver one guild report",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// kind: "failure", "fallback", "rejected"
	NotificationIssues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_notification_issues_total",
			Help: "Notification sink failures, reply fallbacks and breaker rejections",
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "golive_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "golive_store_errors_total",
			Help: "Session store errors, by operation and class",
		},
		[]string{"operation", "class"},
	)
)
