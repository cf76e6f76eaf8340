// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// FetchDuration tracks full message-list fetch duration against the
	// upstream counseling API.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inbox_fetch_duration_seconds",
			Help:    "Full message-list fetch duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"outcome"},
	)

	// MutationsTotal tracks optimistic mutations by kind and outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_mutations_total",
			Help: "Optimistic mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RollbacksTotal tracks optimistic mutations rolled back after an
	// upstream failure.
	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_rollbacks_total",
			Help: "Optimistic mutations rolled back",
		},
		[]string{"kind"},
	)

	// MarkReadDedupTotal tracks mark-as-read calls coalesced into an
	// already in-flight request.
	MarkReadDedupTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_markread_dedup_total",
			Help: "Mark-as-read calls joined to an in-flight request",
		},
	)

	// EnginesActive tracks live per-session sync engines.
	EnginesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inbox_engines_active",
			Help: "Number of active per-session sync engines",
		},
	)

	// ConversationsVisible tracks the conversation count of the most
	// recent aggregation per role.
	ConversationsVisible = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inbox_conversations_visible",
			Help: "Conversations visible after the last aggregation",
		},
		[]string{"role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordFetch records a full-list fetch attempt.
func RecordFetch(outcome string, duration float64) {
	FetchDuration.WithLabelValues(outcome).Observe(duration)
}

// RecordMutation records an optimistic mutation attempt.
func RecordMutation(kind, outcome string) {
	MutationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRollback records a rollback after a failed mutation.
func RecordRollback(kind string) {
	RollbacksTotal.WithLabelValues(kind).Inc()
}
