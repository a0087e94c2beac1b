package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/r2blaze/r2blaze-backend/internal/payments"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

const defaultExpireAfter = 24 * time.Hour

type transactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type settlementApplier interface {
	Apply(ctx context.Context, obs payments.Observation) (*payments.Outcome, error)
}

type PaymentExpiryJobParams struct {
	Logger      *logger.Logger
	Orders      pendingOrderFinder
	Processor   transactionVerifier
	Reconciler  settlementApplier
	ExpireAfter time.Duration
	BatchSize   int
}

// NewPaymentExpiryJob builds the job that closes out stale pending orders.
// Orders the processor never saw, or saw abandoned, are failed; anything
// the processor reports as terminal is applied as-is.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Processor == nil {
		return nil, fmt.Errorf("payment processor required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	after := params.ExpireAfter
	if after <= 0 {
		after = defaultExpireAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &paymentExpiryJob{
		logg:       params.Logger,
		orders:     params.Orders,
		processor:  params.Processor,
		reconciler: params.Reconciler,
		after:      after,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg       *logger.Logger
	orders     pendingOrderFinder
	processor  transactionVerifier
	reconciler settlementApplier
	after      time.Duration
	batch      int
	now        func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	stale, err := j.orders.FindPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query stale orders: %w", err)
	}

	var errs error
	expired := 0
	for _, order := range stale {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		moved, err := j.expire(ctx, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", order.Reference, err))
			continue
		}
		if moved {
			expired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"checked": len(stale),
		"settled": expired,
	})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return errs
}

func (j *paymentExpiryJob) expire(ctx context.Context, order models.Order) (bool, error) {
	obs := payments.Observation{
		Reference: order.Reference,
		Source:    enums.SettlementSourceReconcileSweep,
	}

	txn, err := j.processor.VerifyTransaction(ctx, order.Reference)
	switch {
	case errors.Is(err, paystack.ErrTransactionNotFound):
		obs.Status = enums.TransactionStatusFailed
		obs.FailureReason = "expired: transaction never reached the processor"
	case err != nil:
		return false, err
	default:
		status, _ := enums.ParseTransactionStatus(txn.Status)
		obs.AmountMinor = txn.Amount
		obs.Currency = txn.Currency
		obs.PaidAt = txn.PaidAt
		obs.Raw = txn.Raw
		switch status {
		case enums.TransactionStatusSuccess, enums.TransactionStatusFailed, enums.TransactionStatusReversed:
			obs.Status = status
			obs.FailureReason = txn.GatewayResponse
		case enums.TransactionStatusAbandoned, enums.TransactionStatusInitiated:
			obs.Status = enums.TransactionStatusFailed
			obs.FailureReason = fmt.Sprintf("expired: processor status %s", status)
		default:
			// Still in flight at the processor; leave it for the next cycle.
			ctx = j.logg.WithFields(j.logg.WithReference(ctx, order.Reference), map[string]any{"processor_status": txn.Status})
			j.logg.Warn(ctx, "stale order still in flight at processor")
			return false, nil
		}
	}

	outcome, err := j.reconciler.Apply(ctx, obs)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeSettlementConflict) {
			return false, nil
		}
		return false, err
	}
	return outcome.Transitioned, nil
}
