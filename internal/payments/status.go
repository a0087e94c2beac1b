package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

// Poll statuses reported to the storefront.
const (
	PollStatusSuccess = "success"
	PollStatusPending = "pending"
	PollStatusFailed  = "failed"
)

type transactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, error)
}

type orderReader interface {
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
}

type settlementApplier interface {
	Apply(ctx context.Context, obs Observation) (*Outcome, error)
}

// VerifyResult answers "is this reference paid yet?".
type VerifyResult struct {
	Reference string          `json:"reference"`
	Settled   bool            `json:"settled"`
	Status    string          `json:"status"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

type StatusServiceParams struct {
	Orders     orderReader
	Processor  transactionVerifier
	Reconciler settlementApplier
	Logger     *logger.Logger
}

// StatusService backs the verify endpoint. It reads the processor but only
// ever changes order state through the reconciler.
type StatusService struct {
	orders     orderReader
	processor  transactionVerifier
	reconciler settlementApplier
	logg       *logger.Logger
	group      singleflight.Group
}

func NewStatusService(params StatusServiceParams) (*StatusService, error) {
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Processor == nil {
		return nil, errors.New("payment processor required")
	}
	if params.Reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	return &StatusService{
		orders:     params.Orders,
		processor:  params.Processor,
		reconciler: params.Reconciler,
		logg:       params.Logger,
	}, nil
}

// Verify reports the settlement status of reference. Orders already settled
// locally are answered without calling Paystack. Concurrent polls for the
// same reference share one processor call.
func (s *StatusService) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	reference = strings.TrimSpace(reference)
	if !PaymentReference(reference).Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is missing or malformed")
	}

	order, err := s.orders.FindByReference(ctx, reference)
	switch {
	case err == nil:
		if order.Status.IsTerminal() {
			return resultFromOrder(reference, order.Status), nil
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		order = nil
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	v, err, _ := s.group.Do(reference, func() (any, error) {
		return s.verifyRemote(ctx, reference, order != nil)
	})
	if err != nil {
		return nil, err
	}
	result := *v.(*VerifyResult)
	return &result, nil
}

func (s *StatusService) verifyRemote(ctx context.Context, reference string, known bool) (*VerifyResult, error) {
	txn, err := s.processor.VerifyTransaction(ctx, reference)
	if err != nil {
		if !errors.Is(err, paystack.ErrTransactionNotFound) {
			s.warn(ctx, reference, err, "processor verify failed; reporting pending")
		}
		return &VerifyResult{Reference: reference, Status: PollStatusPending}, nil
	}

	status, parseErr := enums.ParseTransactionStatus(txn.Status)
	if parseErr != nil {
		status = enums.TransactionStatus(strings.ToLower(strings.TrimSpace(txn.Status)))
	}
	if !known {
		// Nothing local to settle; echo the processor's view.
		orderStatus, _ := status.OrderStatus()
		result := resultFromOrder(reference, orderStatus)
		result.Settled = false
		result.Raw = txn.Raw
		return result, nil
	}

	outcome, err := s.reconciler.Apply(ctx, Observation{
		Reference:     reference,
		Status:        status,
		AmountMinor:   txn.Amount,
		Currency:      txn.Currency,
		PaidAt:        txn.PaidAt,
		Source:        enums.SettlementSourceStatusPoll,
		FailureReason: txn.GatewayResponse,
		Raw:           txn.Raw,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeSettlementConflict) {
			s.warn(ctx, reference, err, "verify observed a mismatched payment")
			return &VerifyResult{Reference: reference, Status: PollStatusPending, Raw: txn.Raw}, nil
		}
		return nil, err
	}
	result := resultFromOrder(reference, outcome.Status)
	result.Raw = txn.Raw
	return result, nil
}

func (s *StatusService) warn(ctx context.Context, reference string, err error, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(s.logg.WithReference(ctx, reference), "error", err.Error()), msg)
}

func resultFromOrder(reference string, status enums.OrderStatus) *VerifyResult {
	switch status {
	case enums.OrderStatusPaid:
		return &VerifyResult{Reference: reference, Settled: true, Status: PollStatusSuccess}
	case enums.OrderStatusFailed:
		return &VerifyResult{Reference: reference, Status: PollStatusFailed}
	default:
		return &VerifyResult{Reference: reference, Status: PollStatusPending}
	}
}
