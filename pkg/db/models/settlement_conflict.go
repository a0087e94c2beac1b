package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

// SettlementConflict captures a successful processor observation whose amount
// or currency disagrees with the order. The order stays pending until an
// operator resolves it.
type SettlementConflict struct {
	ID                  uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	Reference           string                  `gorm:"column:reference;not null"`
	ExpectedAmountMinor int64                   `gorm:"column:expected_amount_minor;not null"`
	ExpectedCurrency    enums.Currency          `gorm:"column:expected_currency;type:text;not null"`
	ObservedAmountMinor int64                   `gorm:"column:observed_amount_minor;not null"`
	ObservedCurrency    string                  `gorm:"column:observed_currency;not null"`
	ObservedStatus      enums.TransactionStatus `gorm:"column:observed_status;type:text;not null"`
	Source              enums.SettlementSource  `gorm:"column:source;type:text;not null"`
	Status              enums.ConflictStatus    `gorm:"column:status;type:text;not null;default:'open'"`
	ResolvedBy          *string                 `gorm:"column:resolved_by"`
	ResolutionNote      *string                 `gorm:"column:resolution_note"`
	ResolvedAt          *time.Time              `gorm:"column:resolved_at"`
	CreatedAt           time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (SettlementConflict) TableName() string { return "settlement_conflicts" }
