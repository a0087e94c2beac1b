package enums

import "testing"

func TestTransactionStatusOrderStatus(t *testing.T) {
	cases := []struct {
		status     TransactionStatus
		want       OrderStatus
		transition bool
	}{
		{TransactionStatusSuccess, OrderStatusPaid, true},
		{TransactionStatusFailed, OrderStatusFailed, true},
		{TransactionStatusReversed, OrderStatusFailed, true},
		{TransactionStatusAbandoned, OrderStatusPending, false},
		{TransactionStatusPending, OrderStatusPending, false},
		{TransactionStatusOngoing, OrderStatusPending, false},
		{TransactionStatus("weird"), OrderStatusPending, false},
	}
	for _, tc := range cases {
		got, ok := tc.status.OrderStatus()
		if got != tc.want || ok != tc.transition {
			t.Fatalf("%s: expected (%s,%v) got (%s,%v)", tc.status, tc.want, tc.transition, got, ok)
		}
	}
}

func TestParseTransactionStatusNormalises(t *testing.T) {
	got, err := ParseTransactionStatus(" Success ")
	if err != nil || got != TransactionStatusSuccess {
		t.Fatalf("expected success, got %q err=%v", got, err)
	}
	if _, err := ParseTransactionStatus("refunded-ish"); err == nil {
		t.Fatalf("expected unknown status to error")
	}
}

func TestParseCurrencyUppercases(t *testing.T) {
	got, err := ParseCurrency("ngn")
	if err != nil || got != CurrencyNGN {
		t.Fatalf("expected NGN, got %q err=%v", got, err)
	}
	if _, err := ParseCurrency("XYZ"); err == nil {
		t.Fatalf("expected invalid currency")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() {
		t.Fatalf("pending must not be terminal")
	}
	if !OrderStatusPaid.IsTerminal() || !OrderStatusFailed.IsTerminal() {
		t.Fatalf("paid and failed are terminal")
	}
}
