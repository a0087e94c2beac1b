package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

// Order is the merchant-side record of a checkout. Reference is the
// idempotency key for settlement and is unique across all orders.
type Order struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Reference       string                  `gorm:"column:reference;not null;uniqueIndex:orders_reference_key"`
	Status          enums.OrderStatus       `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountMinor     int64                   `gorm:"column:amount_minor;not null"`
	Currency        enums.Currency          `gorm:"column:currency;type:text;not null"`
	Email           string                  `gorm:"column:email;not null"`
	CustomerName    *string                 `gorm:"column:customer_name"`
	CustomerPhone   *string                 `gorm:"column:customer_phone"`
	ShippingAddress *string                 `gorm:"column:shipping_address"`
	Items           json.RawMessage         `gorm:"column:items;type:jsonb;not null"`
	Metadata        json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	AccessCode      *string                 `gorm:"column:access_code"`
	SettledVia      *enums.SettlementSource `gorm:"column:settled_via;type:text"`
	PaidAt          *time.Time              `gorm:"column:paid_at"`
	FailedAt        *time.Time              `gorm:"column:failed_at"`
	FailureReason   *string                 `gorm:"column:failure_reason"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
