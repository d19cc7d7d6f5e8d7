package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Counter metrics
var (
	// Application operation counter
	ApplicationOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesis_application_operations_total",
			Help: "Total number of thesis application operations",
		},
		[]string{"operation"}, // operation can be "create", "get", "list", "transition", "delete", etc.
	)

	// Status transitions by source and target status
	StatusTransitionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesis_application_status_transitions_total",
			Help: "Total number of applied status transitions",
		},
		[]string{"from", "to"},
	)

	// Rejected transitions, labelled by reason
	TransitionRejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesis_application_transitions_rejected_total",
			Help: "Total number of refused status transitions",
		},
		[]string{"reason"}, // reason can be "invalid_status", "illegal_transition", "forbidden"
	)

	// Theses created from accepted applications
	ThesisPromotionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thesis_promotions_total",
			Help: "Total number of theses created from accepted applications",
		},
	)

	// Authentication counters
	AuthAttemptsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thesis_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesis_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "missing_token", "invalid_token", "invalid_claims"
	)

	// Submissions refused by the rate limiter
	RateLimitedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thesis_application_rate_limited_total",
			Help: "Total number of submissions refused by the rate limiter",
		},
	)

	// Notification delivery outcomes
	NotificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thesis_notifications_total",
			Help: "Total number of e-mail notifications by outcome",
		},
		[]string{"kind", "outcome"},
	)
)

// Histogram metrics
var (
	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "thesis_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Applications per status, refreshed by the stats job
	ApplicationsByStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thesis_applications_by_status",
			Help: "Number of thesis applications per status",
		},
		[]string{"status"},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "thesis_info",
			Help: "Information about the thesis service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(ApplicationOperationCounter)
	prometheus.MustRegister(StatusTransitionCounter)
	prometheus.MustRegister(TransitionRejectedCounter)
	prometheus.MustRegister(ThesisPromotionCounter)
	prometheus.MustRegister(AuthAttemptsCounter)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(RateLimitedCounter)
	prometheus.MustRegister(NotificationCounter)

	prometheus.MustRegister(DBOperationDuration)

	prometheus.MustRegister(ApplicationsByStatusGauge)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// TrackDBOperation returns a function that records the duration of a database operation
func TrackDBOperation(operation string) func(startTime time.Time) {
	return func(startTime time.Time) {
		DBOperationDuration.With(prometheus.Labels{"operation": operation}).Observe(time.Since(startTime).Seconds())
	}
}

// RecordApplicationOperation increments the counter for application operations
func RecordApplicationOperation(operation string) {
	ApplicationOperationCounter.With(prometheus.Labels{"operation": operation}).Inc()
}

// RecordStatusTransition records an applied transition
func RecordStatusTransition(from, to string) {
	StatusTransitionCounter.With(prometheus.Labels{"from": from, "to": to}).Inc()
}

// RecordTransitionRejected records a refused transition
func RecordTransitionRejected(reason string) {
	TransitionRejectedCounter.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordThesisPromotion records a thesis created from an application
func RecordThesisPromotion() {
	ThesisPromotionCounter.Inc()
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordNotification records the outcome of an e-mail notification
func RecordNotification(kind, outcome string) {
	NotificationCounter.With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}

// SetApplicationsByStatus updates the per-status gauge
func SetApplicationsByStatus(status string, count int64) {
	ApplicationsByStatusGauge.With(prometheus.Labels{"status": status}).Set(float64(count))
}
