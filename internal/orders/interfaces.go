package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	"github.com/r2blaze/r2blaze-backend/pkg/pagination"
)

// Repository defines persistence for orders and the rows settlement writes
// alongside them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	TransitionFromPending(ctx context.Context, reference string, to Transition) (bool, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	InsertPaymentRecord(ctx context.Context, record *models.PaymentRecord) error
	CountPaymentRecords(ctx context.Context, reference string) (int64, error)

	UpsertConflict(ctx context.Context, conflict *models.SettlementConflict) (*models.SettlementConflict, error)
	FindConflict(ctx context.Context, id uuid.UUID) (*models.SettlementConflict, error)
	ListConflicts(ctx context.Context, status enums.ConflictStatus, params pagination.Params) (*ConflictList, error)
	MarkConflictResolved(ctx context.Context, id uuid.UUID, resolution ConflictResolution) (bool, error)
}
