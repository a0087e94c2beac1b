package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts reconciler outcomes.
type SettlementMetrics struct {
	transitions *prometheus.CounterVec
	noops       *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

// NewSettlementMetrics registers the settlement counters on reg. A nil
// registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_transitions_total",
		Help: "Orders moved out of pending, by final status and source.",
	}, []string{"status", "source"})
	noops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_noop_total",
		Help: "Settlement attempts that changed nothing.",
	}, []string{"source"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_conflicts_total",
		Help: "Payments held for manual review.",
	}, []string{"reason"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "paystack_notifications_total",
		Help: "Inbound processor notifications by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(transitions, noops, conflicts, webhooks)
	return &SettlementMetrics{
		transitions: transitions,
		noops:       noops,
		conflicts:   conflicts,
		webhooks:    webhooks,
	}
}

func (m *SettlementMetrics) IncTransition(status, source string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}

func (m *SettlementMetrics) IncNoop(source string) {
	if m == nil || m.noops == nil {
		return
	}
	m.noops.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *SettlementMetrics) IncConflict(reason string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncNotification records how an inbound webhook was answered.
func (m *SettlementMetrics) IncNotification(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}
