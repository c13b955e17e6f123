package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus collectors for the lifecycle core.
type Metrics struct {
	TransitionsApplied  *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	SweepRuns           *prometheus.CounterVec
	SweepUpdates        *prometheus.CounterVec
	EscalationsEmitted  *prometheus.CounterVec
	EscalationsDeduped  *prometheus.CounterVec
	CascadesApplied     prometheus.Counter
	CascadesSkipped     prometheus.Counter
	NotifierFailures    *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
}

// NewMetrics registers collectors on the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_transitions_applied_total",
			Help: "State transitions applied, by entity kind and target state.",
		}, []string{"kind", "target"}),
		TransitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_transitions_rejected_total",
			Help: "State transitions rejected by validation.",
		}, []string{"kind", "code"}),
		SweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_sweep_runs_total",
			Help: "Periodic sweep executions, by sweep name.",
		}, []string{"sweep"}),
		SweepUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_sweep_updates_total",
			Help: "Entity writes performed by sweeps.",
		}, []string{"sweep"}),
		EscalationsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_escalations_emitted_total",
			Help: "Escalation notifications emitted, by escalation kind.",
		}, []string{"kind"}),
		EscalationsDeduped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_escalations_deduped_total",
			Help: "Escalations suppressed by the daily dedupe key.",
		}, []string{"kind"}),
		CascadesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_cascades_applied_total",
			Help: "Ticket side effects applied by the cascade resolver.",
		}),
		CascadesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_cascades_skipped_total",
			Help: "Cascades skipped because the ticket table forbids the step.",
		}),
		NotifierFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notifier_failures_total",
			Help: "Channel send failures swallowed by the notifier.",
		}, []string{"channel"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.TransitionsApplied,
			m.TransitionsRejected,
			m.SweepRuns,
			m.SweepUpdates,
			m.EscalationsEmitted,
			m.EscalationsDeduped,
			m.CascadesApplied,
			m.CascadesSkipped,
			m.NotifierFailures,
			m.RequestDuration,
		)
	}
	return m
}
