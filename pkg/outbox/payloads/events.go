package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

// OrderCreatedEvent announces a pending order that is waiting on payment.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID      `json:"order_id"`
	Reference   string         `json:"reference"`
	AmountMinor int64          `json:"amount_minor"`
	Currency    enums.Currency `json:"currency"`
	Email       string         `json:"email"`
}

// OrderPaidEvent is the fulfillment trigger. It is emitted exactly once per
// order, in the transaction that settles it.
type OrderPaidEvent struct {
	OrderID     uuid.UUID              `json:"order_id"`
	Reference   string                 `json:"reference"`
	AmountMinor int64                  `json:"amount_minor"`
	Currency    enums.Currency         `json:"currency"`
	Email       string                 `json:"email"`
	PaidAt      time.Time              `json:"paid_at"`
	Source      enums.SettlementSource `json:"source"`
}

// PaymentFailedEvent reports an order that will never be paid.
type PaymentFailedEvent struct {
	OrderID   uuid.UUID               `json:"order_id"`
	Reference string                  `json:"reference"`
	Status    enums.TransactionStatus `json:"processor_status"`
	Reason    string                  `json:"reason,omitempty"`
	FailedAt  time.Time               `json:"failed_at"`
	Source    enums.SettlementSource  `json:"source"`
}

// SettlementConflictEvent asks operators to review a mismatched payment.
type SettlementConflictEvent struct {
	ConflictID          uuid.UUID              `json:"conflict_id"`
	OrderID             uuid.UUID              `json:"order_id"`
	Reference           string                 `json:"reference"`
	ExpectedAmountMinor int64                  `json:"expected_amount_minor"`
	ExpectedCurrency    enums.Currency         `json:"expected_currency"`
	ObservedAmountMinor int64                  `json:"observed_amount_minor"`
	ObservedCurrency    string                 `json:"observed_currency"`
	Status              enums.ConflictStatus   `json:"status"`
	Decision            enums.ConflictDecision `json:"decision,omitempty"`
}
