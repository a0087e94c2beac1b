package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSettlementMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)
	m.IncTransition("paid", "notification")
	m.IncTransition("paid", "notification")
	m.IncNoop("status_poll")
	m.IncConflict("amount_mismatch")
	m.IncNotification("rejected_signature")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := counterValue(mfs, "settlement_transitions_total", map[string]string{"source": "notification"}); err != nil {
		t.Fatalf("fetch transitions: %v", err)
	} else if got != 2 {
		t.Fatalf("expected transitions=2, got %f", got)
	}
	if got, err := counterValue(mfs, "settlement_noop_total", map[string]string{"source": "status_poll"}); err != nil || got != 1 {
		t.Fatalf("expected noop=1, got %f (%v)", got, err)
	}
	if got, err := counterValue(mfs, "settlement_conflicts_total", map[string]string{"reason": "amount_mismatch"}); err != nil || got != 1 {
		t.Fatalf("expected conflicts=1, got %f (%v)", got, err)
	}
	if got, err := counterValue(mfs, "paystack_notifications_total", map[string]string{"outcome": "rejected_signature"}); err != nil || got != 1 {
		t.Fatalf("expected notifications=1, got %f (%v)", got, err)
	}
}

func TestSettlementMetricsNilSafe(t *testing.T) {
	var m *SettlementMetrics
	m.IncTransition("paid", "notification")
	NewSettlementMetrics(nil).IncNoop("x")
}
