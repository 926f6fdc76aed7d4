package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	transitionsTotal      *prometheus.CounterVec
	transitionConflicts   *prometheus.CounterVec
	ledgerMutationsTotal  *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
	eventsPublishFailures *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_transitions_total",
			Help: "Accepted status transitions by entity.",
		}, []string{"entity", "from", "to"})

		transitionConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_transition_conflicts_total",
			Help: "Transitions that lost a compare-and-swap race.",
		}, []string{"entity"})

		ledgerMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "credit_ledger_mutations_total",
			Help: "Participant ledger mutations by operation and outcome.",
		}, []string{"operation", "outcome"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attachment_upload_rejected_total",
			Help: "Attachment uploads rejected before storage.",
		}, []string{"reason"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attachment_upload_duration_seconds",
			Help:    "Time spent storing attachments.",
			Buckets: prometheus.DefBuckets,
		})

		eventsPublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifecycle_event_publish_failures_total",
			Help: "Lifecycle events that could not be published.",
		}, []string{"transport"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			transitionsTotal,
			transitionConflicts,
			ledgerMutationsTotal,
			uploadRejectedTotal,
			uploadLatencySeconds,
			eventsPublishFailures,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// Transitions counts accepted activity and application transitions.
func Transitions() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// TransitionConflicts counts compare-and-swap losers.
func TransitionConflicts() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionConflicts
}

// LedgerMutations counts participant ledger writes.
func LedgerMutations() *prometheus.CounterVec {
	RegisterMetrics()
	return ledgerMutationsTotal
}

// UploadRejected counts attachments refused by size or type.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// UploadLatency tracks attachment storage latency.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}

// EventPublishFailures counts failed lifecycle event deliveries.
func EventPublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublishFailures
}
