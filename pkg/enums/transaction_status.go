package enums

import (
	"fmt"
	"strings"
)

// TransactionStatus is the processor-side state of a payment intent as
// reported by Paystack.
type TransactionStatus string

const (
	TransactionStatusInitiated TransactionStatus = "initiated"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusOngoing   TransactionStatus = "ongoing"
	TransactionStatusQueued    TransactionStatus = "queued"
	TransactionStatusSuccess   TransactionStatus = "success"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusReversed  TransactionStatus = "reversed"
	TransactionStatusAbandoned TransactionStatus = "abandoned"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusInitiated,
	TransactionStatusPending,
	TransactionStatusOngoing,
	TransactionStatusQueued,
	TransactionStatusSuccess,
	TransactionStatusFailed,
	TransactionStatusReversed,
	TransactionStatusAbandoned,
}

// String implements fmt.Stringer.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionStatus.
func (s TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// OrderStatus maps a processor status onto the order state it settles to.
// The boolean is false for statuses that must not move an order.
func (s TransactionStatus) OrderStatus() (OrderStatus, bool) {
	switch s {
	case TransactionStatusSuccess:
		return OrderStatusPaid, true
	case TransactionStatusFailed, TransactionStatusReversed:
		return OrderStatusFailed, true
	default:
		return OrderStatusPending, false
	}
}

// ParseTransactionStatus normalises processor input. Unknown values are
// reported as an error so callers can treat them as non-terminal.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}
