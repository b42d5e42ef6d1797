// Package metrics holds the Prometheus collectors for the location and
// relation engine. Collectors register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RuleViolations counts location writes rejected by hierarchy rules.
	RuleViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shramba_rule_violations_total",
		Help: "Location writes rejected by hierarchy rules, by operation",
	}, []string{"operation"})

	// CycleRejections counts rejected cycles at the instance or type level.
	CycleRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shramba_cycle_rejections_total",
		Help: "Moves or rule sets rejected because they would form a cycle",
	}, []string{"level"})

	// CodeRetries counts location code allocations that had to be retried.
	CodeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shramba_code_allocation_retries_total",
		Help: "Location code allocations retried after a collision or busy database",
	})

	// AggregateDuration tracks the master rollup read path.
	AggregateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shramba_aggregate_duration_seconds",
		Help:    "Time spent loading and aggregating relation graphs",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	}, []string{"scope"})

	// HTTPRequests counts API requests by method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shramba_http_requests_total",
		Help: "HTTP requests by method and status code",
	}, []string{"method", "status"})
)
