package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/r2blaze/r2blaze-backend/pkg/db"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	"github.com/r2blaze/r2blaze-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status == "" {
		order.Status = enums.OrderStatusPending
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateReference, order.Reference)
		}
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("reference = ?", reference).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionFromPending performs the compare-and-set that makes settlement
// idempotent: only a row still pending is updated. The boolean reports
// whether this call won the transition.
func (r *repository) TransitionFromPending(ctx context.Context, reference string, to Transition) (bool, error) {
	if !to.Status.IsTerminal() {
		return false, fmt.Errorf("transition target %q is not terminal", to.Status)
	}
	at := to.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	updates := map[string]any{
		"status":      to.Status,
		"settled_via": to.Source,
		"updated_at":  at,
	}
	switch to.Status {
	case enums.OrderStatusPaid:
		updates["paid_at"] = at
	case enums.OrderStatusFailed:
		updates["failed_at"] = at
		updates["failure_reason"] = to.FailureReason
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("reference = ? AND status = ?", reference, enums.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.OrderStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertPaymentRecord writes the settlement audit row. A duplicate reference
// is reported as ErrDuplicateReference.
func (r *repository) InsertPaymentRecord(ctx context.Context, record *models.PaymentRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: payment %s", ErrDuplicateReference, record.Reference)
		}
		return err
	}
	return nil
}

func (r *repository) CountPaymentRecords(ctx context.Context, reference string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("reference = ?", reference).
		Count(&count).Error
	return count, err
}

// UpsertConflict records a conflicting observation once. Redelivery of the
// same observation returns the stored row unchanged.
func (r *repository) UpsertConflict(ctx context.Context, conflict *models.SettlementConflict) (*models.SettlementConflict, error) {
	if conflict.ID == uuid.Nil {
		conflict.ID = uuid.New()
	}
	if conflict.Status == "" {
		conflict.Status = enums.ConflictStatusOpen
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "reference"},
				{Name: "observed_amount_minor"},
				{Name: "observed_currency"},
			},
			DoNothing: true,
		}).
		Create(conflict).Error
	if err != nil {
		return nil, err
	}

	var stored models.SettlementConflict
	err = r.db.WithContext(ctx).
		Where("reference = ? AND observed_amount_minor = ? AND observed_currency = ?",
			conflict.Reference, conflict.ObservedAmountMinor, conflict.ObservedCurrency).
		First(&stored).Error
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (r *repository) FindConflict(ctx context.Context, id uuid.UUID) (*models.SettlementConflict, error) {
	var conflict models.SettlementConflict
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conflict).Error; err != nil {
		return nil, err
	}
	return &conflict, nil
}

func (r *repository) ListConflicts(ctx context.Context, status enums.ConflictStatus, params pagination.Params) (*ConflictList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.SettlementConflict{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.SettlementConflict
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, limit, func(c models.SettlementConflict) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return &ConflictList{Conflicts: page, NextCursor: next}, nil
}

// MarkConflictResolved closes an open conflict. It returns false when the
// conflict was already resolved by someone else.
func (r *repository) MarkConflictResolved(ctx context.Context, id uuid.UUID, resolution ConflictResolution) (bool, error) {
	at := resolution.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.SettlementConflict{}).
		Where("id = ? AND status = ?", id, enums.ConflictStatusOpen).
		Updates(map[string]any{
			"status":          resolution.Status,
			"resolved_by":     resolution.ResolvedBy,
			"resolution_note": resolution.Note,
			"resolved_at":     at,
			"updated_at":      at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
