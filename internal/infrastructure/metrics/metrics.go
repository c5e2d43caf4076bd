package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the front-desk agent's Prometheus collectors.
type Metrics struct {
	CallsHandled     *prometheus.CounterVec
	SecurityBlocks   *prometheus.CounterVec
	SecurityFailOpen prometheus.Counter
	CallbacksSwept   prometheus.Counter
	IntentFallbacks  prometheus.Counter
}

// New registers the agent collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CallsHandled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_calls_handled_total",
			Help: "Calls handled by the agent, labeled by outcome.",
		}, []string{"outcome"}),
		SecurityBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontdesk_security_decisions_total",
			Help: "Security filter decisions, labeled by action.",
		}, []string{"action"}),
		SecurityFailOpen: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_security_fail_open_total",
			Help: "Times the security filter allowed a call because its own evaluation failed.",
		}),
		CallbacksSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_callbacks_swept_total",
			Help: "Scheduled callbacks materialized into outgoing calls.",
		}),
		IntentFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "frontdesk_intent_fallback_total",
			Help: "Intent classifications served by the deterministic fallback.",
		}),
	}
}

// NewNop returns metrics on a private registry, for tests and optional wiring.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
