// Package metrics provides Prometheus metrics for the HostConnect
// integration layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequestsTotal counts completed upstream calls by operation
	// and outcome (ok, business_error, transport_error).
	UpstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostlink_upstream_requests_total",
		Help: "Total number of HostConnect requests, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// UpstreamRetriesTotal counts retried attempts by operation.
	UpstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostlink_upstream_retries_total",
		Help: "Total number of retried HostConnect attempts, by operation.",
	}, []string{"operation"})

	// UpstreamRequestDuration observes wall time of upstream calls
	// including retries.
	UpstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hostlink_upstream_request_duration_seconds",
		Help:    "Duration of HostConnect requests including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// CacheHitsTotal and CacheMissesTotal track the result cache.
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostlink_cache_hits_total",
		Help: "Total result cache hits, by operation.",
	}, []string{"operation"})

	CacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostlink_cache_misses_total",
		Help: "Total result cache misses, by operation.",
	}, []string{"operation"})

	// BreakerState reports the upstream circuit breaker state
	// (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hostlink_circuit_breaker_state",
		Help: "Upstream circuit breaker state: 0=closed 1=half-open 2=open.",
	})

	// BookingsTotal counts orchestrated booking submissions by outcome.
	BookingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostlink_bookings_total",
		Help: "Total booking submissions, by outcome status.",
	}, []string{"status"})
)

// SetBreakerState maps a breaker state name onto the gauge.
func SetBreakerState(state string) {
	switch state {
	case "open":
		BreakerState.Set(2)
	case "half-open":
		BreakerState.Set(1)
	default:
		BreakerState.Set(0)
	}
}
