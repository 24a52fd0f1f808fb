package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks completed calls per category and outcome kind
	// ("success" or the classified error kind).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steady_client_requests_total",
			Help: "Total number of completed client calls",
		},
		[]string{"category", "outcome"},
	)

	// AttemptsTotal tracks individual call attempts, including retries
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steady_client_attempts_total",
			Help: "Total number of underlying call attempts",
		},
		[]string{"category"},
	)

	// RetriesTotal tracks retried attempts per category
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steady_client_retries_total",
			Help: "Total number of retried attempts",
		},
		[]string{"category"},
	)

	// RequestLatency tracks end-to-end call latency, retries included
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "steady_client_request_latency_seconds",
			Help:    "End-to-end call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// BreakerTransitions tracks circuit breaker state changes
	BreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steady_client_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	// BreakerRejections tracks calls refused by an open circuit
	BreakerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "steady_client_breaker_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"breaker"},
	)
)
