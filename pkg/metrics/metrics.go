// Copyright 2025 Ochránce Project
//
// Package metrics exposes Prometheus counters and histograms for
// verification cycles, verification modes, and repair outcomes, for
// scraping by cmd/ochranced's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the metrics Ochránce exports. Construct one with New
// and register it with a prometheus.Registerer (typically
// prometheus.DefaultRegisterer, wired by cmd/ochranced).
type Registry struct {
	VerifyTotal      *prometheus.CounterVec
	VerifyDuration   *prometheus.HistogramVec
	RepairTotal      *prometheus.CounterVec
	BlocksRestored   prometheus.Counter
	PolicyViolations *prometheus.CounterVec
}

// New constructs a Registry with all metrics initialised but not yet
// registered.
func New() *Registry {
	return &Registry{
		VerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ochrance",
			Subsystem: "verify",
			Name:      "cycles_total",
			Help:      "Total verification cycles, labelled by mode and outcome.",
		}, []string{"mode", "outcome"}),

		VerifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ochrance",
			Subsystem: "verify",
			Name:      "duration_seconds",
			Help:      "Verification cycle duration in seconds, labelled by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),

		RepairTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ochrance",
			Subsystem: "repair",
			Name:      "attempts_total",
			Help:      "Total repair attempts, labelled by outcome.",
		}, []string{"outcome"}),

		BlocksRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ochrance",
			Subsystem: "repair",
			Name:      "blocks_restored_total",
			Help:      "Total blocks restored across all repair attempts.",
		}),

		PolicyViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ochrance",
			Subsystem: "policy",
			Name:      "violations_total",
			Help:      "Total policy predicate violations, labelled by predicate name.",
		}, []string{"predicate"}),
	}
}

// MustRegister registers every metric in r with reg, panicking on a
// duplicate-registration error (mirrors prometheus.MustRegister's
// standard usage at process start).
func (r *Registry) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(r.VerifyTotal, r.VerifyDuration, r.RepairTotal, r.BlocksRestored, r.PolicyViolations)
}

// ObserveVerify records the outcome and duration of one verification
// cycle.
func (r *Registry) ObserveVerify(mode, outcome string, seconds float64) {
	r.VerifyTotal.WithLabelValues(mode, outcome).Inc()
	r.VerifyDuration.WithLabelValues(mode).Observe(seconds)
}

// ObserveRepair records the outcome of one repair attempt and, on
// success, how many blocks it restored.
func (r *Registry) ObserveRepair(outcome string, blocksRestored int) {
	r.RepairTotal.WithLabelValues(outcome).Inc()
	if blocksRestored > 0 {
		r.BlocksRestored.Add(float64(blocksRestored))
	}
}

// ObservePolicyViolation increments the violation counter for a named
// predicate.
func (r *Registry) ObservePolicyViolation(predicate string) {
	r.PolicyViolations.WithLabelValues(predicate).Inc()
}
