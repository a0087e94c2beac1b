package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/r2blaze/r2blaze-backend/internal/payments"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
)

const (
	defaultReconcileAfter = 15 * time.Minute
	defaultSweepBatch     = 50
)

type pendingOrderFinder interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type statusVerifier interface {
	Verify(ctx context.Context, reference string) (*payments.VerifyResult, error)
}

type PaymentReconcileJobParams struct {
	Logger         *logger.Logger
	Orders         pendingOrderFinder
	Status         statusVerifier
	ReconcileAfter time.Duration
	BatchSize      int
}

// NewPaymentReconcileJob builds the job that re-verifies orders whose
// notification never arrived. Settlement goes through the status service,
// so the same reconciler rules apply as for a storefront poll.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Status == nil {
		return nil, fmt.Errorf("status service required")
	}
	after := params.ReconcileAfter
	if after <= 0 {
		after = defaultReconcileAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	return &paymentReconcileJob{
		logg:   params.Logger,
		orders: params.Orders,
		status: params.Status,
		after:  after,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg   *logger.Logger
	orders pendingOrderFinder
	status statusVerifier
	after  time.Duration
	batch  int
	now    func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	pending, err := j.orders.FindPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	var errs error
	var paid, failed, stillOpen int
	for _, order := range pending {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		result, err := j.status.Verify(ctx, order.Reference)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("verify %s: %w", order.Reference, err))
			continue
		}
		switch result.Status {
		case payments.PollStatusSuccess:
			paid++
		case payments.PollStatusFailed:
			failed++
		default:
			stillOpen++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"checked": len(pending),
		"paid":    paid,
		"failed":  failed,
		"pending": stillOpen,
	})
	j.logg.Info(logCtx, "payment reconcile sweep complete")
	return errs
}
