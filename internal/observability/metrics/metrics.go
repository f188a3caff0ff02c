// Package metrics exposes prometheus instrumentation for the reconciliation
// paths and the trial sweep.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	PaymentsApplied         *prometheus.CounterVec
	DuplicatesSuppressed    *prometheus.CounterVec
	TrialsExpired           prometheus.Counter
	QuotaDenied             *prometheus.CounterVec
	ReconciliationConflicts prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		PaymentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxlay_payments_applied_total",
			Help: "Payment events applied to the subscription store, by path.",
		}, []string{"path"}),
		DuplicatesSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxlay_payment_duplicates_suppressed_total",
			Help: "Redelivered payment events suppressed by idempotency checks.",
		}, []string{"path"}),
		TrialsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxlay_trials_expired_total",
			Help: "Trial subscriptions transitioned to TRIAL_EXPIRED by the sweep.",
		}),
		QuotaDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxlay_quota_denied_total",
			Help: "Feature requests denied by the plan quota engine, by action.",
		}, []string{"action"}),
		ReconciliationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "proxlay_reconciliation_conflicts_total",
			Help: "Payments confirmed at the gateway whose local state update failed.",
		}),
	}

	reg.MustRegister(
		m.PaymentsApplied,
		m.DuplicatesSuppressed,
		m.TrialsExpired,
		m.QuotaDenied,
		m.ReconciliationConflicts,
	)
	return m
}

func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

var Module = fx.Module("observability.metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
)
