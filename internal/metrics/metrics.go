// Package metrics exposes the service counters on the default prometheus
// registry, served at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound provider events by outcome:
	// applied, already_applied, ignored, error.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "webhook_events_total",
		Help:      "Provider webhook deliveries by outcome.",
	}, []string{"outcome"})

	// Transitions counts applied withdrawal state transitions by target status.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "withdrawal_transitions_total",
		Help:      "Withdrawal state transitions by target status.",
	}, []string{"status"})

	// Reconciliations counts reconcile runs by outcome: converged, noop, error.
	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "reconciliations_total",
		Help:      "Reconciliation attempts by outcome.",
	}, []string{"outcome"})

	// PinFailures counts failed PIN verifications.
	PinFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "pin_failures_total",
		Help:      "Failed transaction PIN verifications.",
	})

	// PinLockouts counts activated lockout windows.
	PinLockouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "pin_lockouts_total",
		Help:      "Activated PIN lockout windows.",
	})
)
