// Package metrics provides Prometheus metrics collection for quotad.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for quotad.
type Collector struct {
	// Consumption metrics
	Decisions *prometheus.CounterVec // outcome: allowed, denied, failed
	Resets    prometheus.Counter

	// Store metrics
	StoreFailures *prometheus.CounterVec // op: load, save, increment
	DegradedReads prometheus.Counter     // fail-open reads served without the store

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Plan metrics
	UnknownPlans *prometheus.CounterVec // plan_id

	// Log metrics
	LogFailures prometheus.Counter
}

// New creates a new metrics collector with all metrics registered.
func New() *Collector {
	return &Collector{
		Decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "consumption_decisions_total",
				Help:      "Consumption attempts by outcome",
			},
			[]string{"outcome", "plan_id"},
		),
		Resets: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "resets_total",
				Help:      "Day-boundary quota resets performed",
			},
		),
		StoreFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "store_failures_total",
				Help:      "Usage store failures by operation",
			},
			[]string{"op"},
		),
		DegradedReads: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "degraded_reads_total",
				Help:      "Reads served fail-open while the store was unavailable",
			},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "cache_hits_total",
				Help:      "Usage cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "cache_misses_total",
				Help:      "Usage cache misses, including day-boundary staleness",
			},
		),
		UnknownPlans: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "unknown_plans_total",
				Help:      "Lookups for plan IDs missing from the plan table",
			},
			[]string{"plan_id"},
		),
		LogFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quotad",
				Name:      "log_append_failures_total",
				Help:      "Usage log append failures (never fail a consumption)",
			},
		),
	}
}
