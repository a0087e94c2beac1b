package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/internal/orders"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/metrics"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox/payloads"
)

const (
	conflictReasonAmount   = "amount_mismatch"
	conflictReasonCurrency = "currency_mismatch"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Observation is one sighting of a processor transaction, from a webhook, a
// status poll, the reconcile sweep or an operator.
type Observation struct {
	Reference     string
	Status        enums.TransactionStatus
	AmountMinor   int64
	Currency      string
	PaidAt        *time.Time
	Source        enums.SettlementSource
	FailureReason string
	Raw           json.RawMessage

	// AcceptMismatch settles even when amount or currency disagree. Only
	// operator reviews set it.
	AcceptMismatch bool
	Actor          string
}

// Outcome describes what Apply did.
type Outcome struct {
	OrderID      uuid.UUID         `json:"orderId"`
	Reference    string            `json:"reference"`
	Status       enums.OrderStatus `json:"status"`
	Transitioned bool              `json:"transitioned"`
	Duplicate    bool              `json:"duplicate"`
	ConflictID   *uuid.UUID        `json:"conflictId,omitempty"`
}

type ReconcilerParams struct {
	DB      txRunner
	Orders  orders.Repository
	Outbox  outboxPublisher
	Metrics *metrics.SettlementMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// Reconciler is the only writer of order settlement state. Apply may be
// called any number of times, concurrently, for the same reference: a
// conditional update on status = 'pending' lets exactly one call win.
type Reconciler struct {
	db      txRunner
	orders  orders.Repository
	outbox  outboxPublisher
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Reconciler{
		db:      params.DB,
		orders:  params.Orders,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// Apply settles the order named by obs.Reference if it is still pending and
// the observation is terminal. A mismatched success is recorded as a
// settlement conflict and reported as CodeSettlementConflict; the order is
// left pending.
func (r *Reconciler) Apply(ctx context.Context, obs Observation) (*Outcome, error) {
	if err := validateObservation(obs); err != nil {
		return nil, err
	}
	var (
		outcome  *Outcome
		conflict *conflictResult
	)
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		outcome, conflict, err = r.applyTx(ctx, tx, obs)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.record(ctx, obs, outcome, conflict)
	if conflict != nil {
		return outcome, conflict.err
	}
	return outcome, nil
}

type conflictResult struct {
	reason string
	err    *pkgerrors.Error
}

func validateObservation(obs Observation) error {
	if strings.TrimSpace(obs.Reference) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}
	if !obs.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown settlement source %q", obs.Source))
	}
	if obs.AcceptMismatch && obs.Source != enums.SettlementSourceAdminReview {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only an admin review may accept a mismatched payment")
	}
	return nil
}

func (r *Reconciler) applyTx(ctx context.Context, tx *gorm.DB, obs Observation) (*Outcome, *conflictResult, error) {
	repo := r.orders.WithTx(tx)
	reference := strings.TrimSpace(obs.Reference)

	order, err := repo.FindByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found").WithDetails(map[string]any{"reference": reference})
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	outcome := &Outcome{OrderID: order.ID, Reference: order.Reference, Status: order.Status}
	if order.Status.IsTerminal() {
		outcome.Duplicate = true
		return outcome, nil, nil
	}

	target, settles := obs.Status.OrderStatus()
	if !settles {
		return outcome, nil, nil
	}

	if target == enums.OrderStatusPaid && !obs.AcceptMismatch {
		if reason := mismatchReason(order, obs); reason != "" {
			conflict, err := r.recordConflict(ctx, tx, repo, order, obs, reason)
			if err != nil {
				return nil, nil, err
			}
			outcome.ConflictID = &conflict.ID
			return outcome, &conflictResult{
				reason: reason,
				err: pkgerrors.New(pkgerrors.CodeSettlementConflict, "payment does not match order").WithDetails(map[string]any{
					"reference":           order.Reference,
					"conflictId":          conflict.ID.String(),
					"reason":              reason,
					"expectedAmountMinor": order.AmountMinor,
					"observedAmountMinor": obs.AmountMinor,
					"expectedCurrency":    order.Currency,
					"observedCurrency":    obs.Currency,
				}),
			}, nil
		}
	}

	at := r.now()
	if target == enums.OrderStatusPaid && obs.PaidAt != nil && !obs.PaidAt.IsZero() {
		at = obs.PaidAt.UTC()
	}
	transition := orders.Transition{Status: target, Source: obs.Source, At: at}
	if target == enums.OrderStatusFailed {
		reason := failureReason(obs)
		transition.FailureReason = &reason
	}

	won, err := repo.TransitionFromPending(ctx, reference, transition)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "transition order")
	}
	if !won {
		// Another delivery settled it between our read and write.
		current, err := repo.FindByReference(ctx, reference)
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		outcome.Status = current.Status
		outcome.Duplicate = true
		return outcome, nil, nil
	}

	outcome.Status = target
	outcome.Transitioned = true

	actor := &outbox.ActorRef{Source: obs.Source.String(), Subject: obs.Actor}
	switch target {
	case enums.OrderStatusPaid:
		record := &models.PaymentRecord{
			OrderID:     order.ID,
			Reference:   order.Reference,
			Processor:   "paystack",
			Status:      obs.Status,
			AmountMinor: obs.AmountMinor,
			Currency:    order.Currency,
			Source:      obs.Source,
			PaidAt:      &at,
			Raw:         obs.Raw,
		}
		if err := repo.InsertPaymentRecord(ctx, record); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment")
		}
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    at,
			Data: payloads.OrderPaidEvent{
				OrderID:     order.ID,
				Reference:   order.Reference,
				AmountMinor: obs.AmountMinor,
				Currency:    order.Currency,
				Email:       order.Email,
				PaidAt:      at,
				Source:      obs.Source,
			},
		}); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order paid")
		}
	case enums.OrderStatusFailed:
		if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor,
			OccurredAt:    at,
			Data: payloads.PaymentFailedEvent{
				OrderID:   order.ID,
				Reference: order.Reference,
				Status:    obs.Status,
				Reason:    *transition.FailureReason,
				FailedAt:  at,
				Source:    obs.Source,
			},
		}); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment failed")
		}
	}
	return outcome, nil, nil
}

func (r *Reconciler) recordConflict(ctx context.Context, tx *gorm.DB, repo orders.Repository, order *models.Order, obs Observation, reason string) (*models.SettlementConflict, error) {
	candidate := &models.SettlementConflict{
		ID:                  uuid.New(),
		OrderID:             order.ID,
		Reference:           order.Reference,
		ExpectedAmountMinor: order.AmountMinor,
		ExpectedCurrency:    order.Currency,
		ObservedAmountMinor: obs.AmountMinor,
		ObservedCurrency:    strings.ToUpper(strings.TrimSpace(obs.Currency)),
		ObservedStatus:      obs.Status,
		Source:              obs.Source,
		Status:              enums.ConflictStatusOpen,
	}
	stored, err := repo.UpsertConflict(ctx, candidate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record settlement conflict")
	}
	if stored.ID != candidate.ID {
		// Same observation seen before; the review is already queued.
		return stored, nil
	}
	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSettlementConflictRecorded,
		AggregateType: enums.AggregateSettlementConflict,
		AggregateID:   stored.ID,
		Actor:         &outbox.ActorRef{Source: obs.Source.String()},
		Data: payloads.SettlementConflictEvent{
			ConflictID:          stored.ID,
			OrderID:             order.ID,
			Reference:           order.Reference,
			ExpectedAmountMinor: order.AmountMinor,
			ExpectedCurrency:    order.Currency,
			ObservedAmountMinor: stored.ObservedAmountMinor,
			ObservedCurrency:    stored.ObservedCurrency,
			Status:              stored.Status,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit settlement conflict")
	}
	if r.logg != nil {
		r.logg.Warn(r.logg.WithFields(r.logg.WithReference(ctx, order.Reference), map[string]any{
			"conflict_id": stored.ID.String(),
			"reason":      reason,
		}), "settlement conflict recorded")
	}
	return stored, nil
}

func mismatchReason(order *models.Order, obs Observation) string {
	if obs.AmountMinor != order.AmountMinor {
		return conflictReasonAmount
	}
	if !strings.EqualFold(strings.TrimSpace(obs.Currency), order.Currency.String()) {
		return conflictReasonCurrency
	}
	return ""
}

func failureReason(obs Observation) string {
	if reason := strings.TrimSpace(obs.FailureReason); reason != "" {
		return reason
	}
	return fmt.Sprintf("processor reported %s", obs.Status)
}

func (r *Reconciler) record(ctx context.Context, obs Observation, outcome *Outcome, conflict *conflictResult) {
	source := obs.Source.String()
	switch {
	case conflict != nil:
		r.metrics.IncConflict(conflict.reason)
	case outcome.Transitioned:
		r.metrics.IncTransition(outcome.Status.String(), source)
	default:
		r.metrics.IncNoop(source)
	}
	if r.logg == nil {
		return
	}
	logCtx := r.logg.WithFields(r.logg.WithReference(ctx, outcome.Reference), map[string]any{
		"order_id":         outcome.OrderID.String(),
		"source":           source,
		"processor_status": string(obs.Status),
		"order_status":     outcome.Status.String(),
		"transitioned":     outcome.Transitioned,
		"duplicate":        outcome.Duplicate,
	})
	if outcome.Transitioned {
		r.logg.Info(logCtx, "order settled")
		return
	}
	r.logg.Debug(logCtx, "settlement observation applied without transition")
}
