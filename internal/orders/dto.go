package orders

import (
	"errors"
	"time"

	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

// ErrDuplicateReference reports that an order already exists for a reference.
var ErrDuplicateReference = errors.New("order reference already used")

// Transition describes the single allowed move out of pending.
type Transition struct {
	Status        enums.OrderStatus
	Source        enums.SettlementSource
	At            time.Time
	FailureReason *string
}

// ConflictResolution records an operator's verdict.
type ConflictResolution struct {
	Status     enums.ConflictStatus
	ResolvedBy string
	Note       *string
	At         time.Time
}

// ConflictList is a cursor page of settlement conflicts.
type ConflictList struct {
	Conflicts  []models.SettlementConflict `json:"conflicts"`
	NextCursor string                      `json:"nextCursor,omitempty"`
}
