package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's collectors. Create one per registry.
type Metrics struct {
	// StatementsTotal counts executed statements by kind and outcome.
	StatementsTotal *prometheus.CounterVec
	// FallbacksTotal counts local evaluations by reason.
	FallbacksTotal *prometheus.CounterVec
	// PredicateErrorsTotal counts rows excluded by a condition that could
	// not be evaluated.
	PredicateErrorsTotal prometheus.Counter
	// RowsScannedTotal counts entities fetched for local evaluation.
	RowsScannedTotal prometheus.Counter
	// RemoteRequestsTotal counts remote calls by method and HTTP status.
	RemoteRequestsTotal *prometheus.CounterVec
	// RemoteRequestDuration is the latency of remote calls.
	RemoteRequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gqlbridge_statements_total",
				Help: "Total number of executed statements",
			},
			[]string{"kind", "outcome"},
		),
		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gqlbridge_fallbacks_total",
				Help: "Total number of queries evaluated locally",
			},
			[]string{"reason"},
		),
		PredicateErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gqlbridge_predicate_errors_total",
			Help: "Rows excluded because a condition could not be evaluated",
		}),
		RowsScannedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gqlbridge_fallback_rows_scanned_total",
			Help: "Entities fetched for local evaluation",
		}),
		RemoteRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gqlbridge_remote_requests_total",
				Help: "Total number of remote store requests",
			},
			[]string{"method", "status"},
		),
		RemoteRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gqlbridge_remote_request_duration_seconds",
				Help:    "Remote store request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// ObserveRequest records one remote round trip. Status 0 means the request
// got no response.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.RemoteRequestsTotal.WithLabelValues(method, label).Inc()
	m.RemoteRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordStatement counts one statement.
func (m *Metrics) RecordStatement(kind, outcome string) {
	m.StatementsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordFallback counts one local evaluation and what it cost.
func (m *Metrics) RecordFallback(reason string, scanned, predicateErrors int) {
	m.FallbacksTotal.WithLabelValues(reason).Inc()
	m.RowsScannedTotal.Add(float64(scanned))
	m.PredicateErrorsTotal.Add(float64(predicateErrors))
}
