// Package metrics exposes the Prometheus collectors the reconciler,
// planner, and gateway record against.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ReconcilerTickDuration measures how long a single reconciler tick
	// takes to select and dispatch candidates.
	ReconcilerTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_reconciler_tick_duration_seconds",
		Help:    "Duration of a single reconciler driver tick.",
		Buckets: prometheus.DefBuckets,
	})

	// RunLockWaitDuration measures how long process_terminating_run waits
	// for the three job-processing lock sets to drain (spec §4.4 step 2).
	RunLockWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orchestrator_run_lock_wait_seconds",
		Help:    "Time spent waiting for job locks to drain before mutating a terminating run's jobs.",
		Buckets: prometheus.DefBuckets,
	})

	// OfferPlanSize records how many offers BuildRunPlan combined (pool
	// and remote together), under the source label "run_plan".
	OfferPlanSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "orchestrator_offer_plan_size",
		Help:    "Number of offers returned by a plan, by source.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	}, []string{"source"})

	// BackendOfferErrors counts per-backend offer query failures, which
	// spec §4.1 says are logged and excluded rather than fatal.
	BackendOfferErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_backend_offer_errors_total",
		Help: "Count of backend offer queries that failed and were excluded from planning.",
	}, []string{"backend"})

	// InstanceCreateAttempts counts create_instance attempts per backend
	// and outcome (success, backend_error, unsupported).
	InstanceCreateAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orchestrator_instance_create_attempts_total",
		Help: "Count of create_instance attempts by backend and outcome.",
	}, []string{"backend", "outcome"})

	// JobsByStatus gauges the number of jobs currently in each status.
	JobsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orchestrator_jobs_by_status",
		Help: "Current number of jobs in each lifecycle status.",
	}, []string{"status"})
)

// Collectors returns the collectors above for registration against a
// prometheus.Registerer (e.g. prometheus.DefaultRegisterer or a test
// registry).
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ReconcilerTickDuration,
		RunLockWaitDuration,
		OfferPlanSize,
		BackendOfferErrors,
		InstanceCreateAttempts,
		JobsByStatus,
	}
}

// MustRegister registers every collector against reg, panicking on a
// duplicate-registration error the way prometheus.MustRegister does.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(Collectors()...)
}
