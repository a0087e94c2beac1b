package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/internal/orders"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox/payloads"
	"github.com/r2blaze/r2blaze-backend/pkg/pagination"
)

// ResolveConflictInput is an operator verdict on a held payment.
type ResolveConflictInput struct {
	Decision enums.ConflictDecision
	Note     string
	Actor    string
}

// ResolveConflictResult reports the conflict's new state and what happened
// to its order.
type ResolveConflictResult struct {
	ConflictID uuid.UUID            `json:"conflictId"`
	Status     enums.ConflictStatus `json:"status"`
	Order      *Outcome             `json:"order"`
}

// ConflictService lets operators review payments the reconciler refused to
// settle.
type ConflictService struct {
	db         txRunner
	orders     orders.Repository
	reconciler *Reconciler
	outbox     outboxPublisher
	now        func() time.Time
}

func NewConflictService(db txRunner, repo orders.Repository, reconciler *Reconciler, publisher outboxPublisher) (*ConflictService, error) {
	if db == nil {
		return nil, errors.New("tx runner required")
	}
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	if reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	if publisher == nil {
		return nil, errors.New("outbox publisher required")
	}
	return &ConflictService{
		db:         db,
		orders:     repo,
		reconciler: reconciler,
		outbox:     publisher,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ConflictService) List(ctx context.Context, status enums.ConflictStatus, params pagination.Params) (*orders.ConflictList, error) {
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid conflict status %q", status))
	}
	list, err := s.orders.ListConflicts(ctx, status, params)
	if errors.Is(err, pagination.ErrInvalidCursor) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list settlement conflicts")
	}
	return list, nil
}

// Resolve applies the operator's decision. Accepting settles the order at
// the observed amount; rejecting fails it. The order change and the conflict
// update commit together.
func (s *ConflictService) Resolve(ctx context.Context, id uuid.UUID, input ResolveConflictInput) (*ResolveConflictResult, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conflict id is required")
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "reviewer identity required")
	}

	var status enums.ConflictStatus
	switch input.Decision {
	case enums.ConflictDecisionAccept:
		status = enums.ConflictStatusAccepted
	case enums.ConflictDecisionReject:
		status = enums.ConflictStatusRejected
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", input.Decision))
	}

	var (
		result *ResolveConflictResult
		obs    Observation
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		conflict, err := repo.FindConflict(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "settlement conflict not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settlement conflict")
		}
		if conflict.Status != enums.ConflictStatusOpen {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement conflict already resolved").WithDetails(map[string]any{
				"status": conflict.Status,
			})
		}

		obs = Observation{
			Reference:      conflict.Reference,
			AmountMinor:    conflict.ObservedAmountMinor,
			Currency:       conflict.ObservedCurrency,
			Source:         enums.SettlementSourceAdminReview,
			Actor:          actor,
			AcceptMismatch: input.Decision == enums.ConflictDecisionAccept,
		}
		if input.Decision == enums.ConflictDecisionAccept {
			obs.Status = enums.TransactionStatusSuccess
		} else {
			obs.Status = enums.TransactionStatusFailed
			obs.FailureReason = "payment rejected in review"
			if note := strings.TrimSpace(input.Note); note != "" {
				obs.FailureReason += ": " + note
			}
		}

		outcome, conflictRes, err := s.reconciler.applyTx(ctx, tx, obs)
		if err != nil {
			return err
		}
		if conflictRes != nil {
			return conflictRes.err
		}

		var note *string
		if trimmed := strings.TrimSpace(input.Note); trimmed != "" {
			note = &trimmed
		}
		resolved, err := repo.MarkConflictResolved(ctx, id, orders.ConflictResolution{
			Status:     status,
			ResolvedBy: actor,
			Note:       note,
			At:         s.now(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve settlement conflict")
		}
		if !resolved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "settlement conflict already resolved")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSettlementConflictResolved,
			AggregateType: enums.AggregateSettlementConflict,
			AggregateID:   conflict.ID,
			Actor:         &outbox.ActorRef{Source: enums.SettlementSourceAdminReview.String(), Subject: actor},
			Data: payloads.SettlementConflictEvent{
				ConflictID:          conflict.ID,
				OrderID:             conflict.OrderID,
				Reference:           conflict.Reference,
				ExpectedAmountMinor: conflict.ExpectedAmountMinor,
				ExpectedCurrency:    conflict.ExpectedCurrency,
				ObservedAmountMinor: conflict.ObservedAmountMinor,
				ObservedCurrency:    conflict.ObservedCurrency,
				Status:              status,
				Decision:            input.Decision,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit conflict resolution")
		}

		result = &ResolveConflictResult{ConflictID: conflict.ID, Status: status, Order: outcome}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.reconciler.record(ctx, obs, result.Order, nil)
	return result, nil
}
