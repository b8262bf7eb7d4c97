// Package metrics exposes Prometheus collectors for remote store traffic
// and side-effect function invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for store and function calls.
const (
	OutcomeOK        = "ok"
	OutcomeEnvelope  = "envelope_failure"
	OutcomeItem      = "item_failure"
	OutcomeTransport = "transport_error"
)

var (
	storeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealflow_store_requests_total",
		Help: "Remote record store calls by collection, operation and outcome.",
	}, []string{"collection", "operation", "outcome"})

	storeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dealflow_store_request_duration_seconds",
		Help:    "Remote record store round-trip latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "operation"})

	functionInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealflow_function_invocations_total",
		Help: "Side-effect function invocations by function ref and outcome.",
	}, []string{"function", "outcome"})

	wonTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dealflow_deal_won_transitions_total",
		Help: "Deal status transitions landing on won.",
	})
)

// ObserveStoreRequest records one remote store round trip.
func ObserveStoreRequest(collection, operation, outcome string, elapsed time.Duration) {
	storeRequests.WithLabelValues(collection, operation, outcome).Inc()
	storeDuration.WithLabelValues(collection, operation).Observe(elapsed.Seconds())
}

// ObserveItemFailure records a per-record failure inside a successful
// envelope. It counts in addition to the transport-level outcome already
// recorded for the same request.
func ObserveItemFailure(collection, operation string) {
	storeRequests.WithLabelValues(collection, operation, OutcomeItem).Inc()
}

// ObserveFunctionInvocation records one side-effect function call.
func ObserveFunctionInvocation(function, outcome string) {
	functionInvocations.WithLabelValues(function, outcome).Inc()
}

// ObserveWonTransition records a detected not-won to won edge.
func ObserveWonTransition() {
	wonTransitions.Inc()
}

// Handler returns the /metrics scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
