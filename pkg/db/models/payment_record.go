package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

// PaymentRecord is the audit row written exactly once when an order settles
// as paid. The unique reference doubles as a second dedup barrier.
type PaymentRecord struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	Reference   string                  `gorm:"column:reference;not null;uniqueIndex:payments_reference_key"`
	Processor   string                  `gorm:"column:processor;not null;default:'paystack'"`
	Status      enums.TransactionStatus `gorm:"column:status;type:text;not null"`
	AmountMinor int64                   `gorm:"column:amount_minor;not null"`
	Currency    enums.Currency          `gorm:"column:currency;type:text;not null"`
	Source      enums.SettlementSource  `gorm:"column:source;type:text;not null"`
	PaidAt      *time.Time              `gorm:"column:paid_at"`
	Raw         json.RawMessage         `gorm:"column:raw;type:jsonb"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentRecord) TableName() string { return "payments" }
