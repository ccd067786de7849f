// Package metrics exposes engine activity as Prometheus collectors. The
// collector listens on the engine bus, so instrumenting a session costs one
// Attach call and no changes to the core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/quillform/stepflow/pkg/bus"
	"github.com/quillform/stepflow/pkg/domain"
)

// Collector holds the engine-level Prometheus metrics.
type Collector struct {
	transitions        prometheus.Counter
	skipsApplied       prometheus.Counter
	skipsUndone        prometheus.Counter
	validationFailures prometheus.Counter
	branchFlips        *prometheus.CounterVec
	stepVisits         *prometheus.CounterVec
}

// NewCollector creates and registers the engine metrics.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stepflow",
			Name:      "step_transitions_total",
			Help:      "Committed step transitions.",
		}),
		skipsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stepflow",
			Name:      "skips_applied_total",
			Help:      "Skip entries recorded, explicit and conditional.",
		}),
		skipsUndone: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stepflow",
			Name:      "skips_undone_total",
			Help:      "Skip entries reversed.",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stepflow",
			Name:      "validation_failures_total",
			Help:      "Validation failures that blocked navigation or were reported per-field.",
		}),
		branchFlips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepflow",
			Name:      "branch_visibility_flips_total",
			Help:      "Conditional step visibility changes.",
		}, []string{"direction"}),
		stepVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stepflow",
			Name:      "step_visits_total",
			Help:      "Visits per step id.",
		}, []string{"step"}),
	}
	reg.MustRegister(
		c.transitions,
		c.skipsApplied,
		c.skipsUndone,
		c.validationFailures,
		c.branchFlips,
		c.stepVisits,
	)
	return c
}

// Attach subscribes the collector to an engine bus and returns a function
// releasing the subscriptions.
func (c *Collector) Attach(b *bus.Bus) func() {
	unsubs := []func(){
		b.Subscribe(domain.EventStepChange, func(payload any) {
			c.transitions.Inc()
			if change, ok := payload.(domain.StepChange); ok {
				c.stepVisits.WithLabelValues(change.CurrentStepID).Inc()
			}
		}),
		b.Subscribe(domain.EventSkipApplied, func(any) {
			c.skipsApplied.Inc()
		}),
		b.Subscribe(domain.EventSkipUndone, func(any) {
			c.skipsUndone.Inc()
		}),
		b.Subscribe(domain.EventValidationFailed, func(any) {
			c.validationFailures.Inc()
		}),
		b.Subscribe(domain.EventBranchShow, func(any) {
			c.branchFlips.WithLabelValues("show").Inc()
		}),
		b.Subscribe(domain.EventBranchHide, func(any) {
			c.branchFlips.WithLabelValues("hide").Inc()
		}),
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}
