package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

func newTestStatusService(t *testing.T, stack *settlementStack, verifier *stubVerifier) *StatusService {
	t.Helper()
	svc, err := NewStatusService(StatusServiceParams{
		Orders:     stack.orders,
		Processor:  verifier,
		Reconciler: stack.reconciler,
	})
	require.NoError(t, err)
	return svc
}

func TestVerifySettlesThroughReconciler(t *testing.T) {
	stack := newSettlementStack(t)
	stack.seedOrder(t, "r2b_poll", 100000)
	verifier := &stubVerifier{txn: &paystack.Transaction{
		Amount:   100000,
		Currency: "NGN",
		Status:   "success",
		Raw:      json.RawMessage(`{"status":"success"}`),
	}}
	svc := newTestStatusService(t, stack, verifier)

	result, err := svc.Verify(context.Background(), "r2b_poll")
	require.NoError(t, err)
	assert.True(t, result.Settled)
	assert.Equal(t, PollStatusSuccess, result.Status)
	assert.JSONEq(t, `{"status":"success"}`, string(result.Raw))

	stored, err := stack.orders.FindByReference(context.Background(), "r2b_poll")
	require.NoError(t, err)
	require.NotNil(t, stored.SettledVia)
	assert.Equal(t, enums.SettlementSourceStatusPoll, *stored.SettledVia)

	// Settled orders are answered locally.
	_, err = svc.Verify(context.Background(), "r2b_poll")
	require.NoError(t, err)
	assert.Equal(t, 1, verifier.callCount())
}

func TestVerifyReportsPendingForNonTerminalProcessorStatus(t *testing.T) {
	for _, status := range []string{"abandoned", "ongoing", "queued", "pending"} {
		t.Run(status, func(t *testing.T) {
			stack := newSettlementStack(t)
			stack.seedOrder(t, "r2b_wait", 100000)
			svc := newTestStatusService(t, stack, &stubVerifier{txn: &paystack.Transaction{Amount: 100000, Currency: "NGN", Status: status}})

			result, err := svc.Verify(context.Background(), "r2b_wait")
			require.NoError(t, err)
			assert.False(t, result.Settled)
			assert.Equal(t, PollStatusPending, result.Status)
		})
	}
}

func TestVerifyReportsFailed(t *testing.T) {
	stack := newSettlementStack(t)
	stack.seedOrder(t, "r2b_declined", 100000)
	svc := newTestStatusService(t, stack, &stubVerifier{txn: &paystack.Transaction{Amount: 100000, Currency: "NGN", Status: "failed", GatewayResponse: "Declined"}})

	result, err := svc.Verify(context.Background(), "r2b_declined")
	require.NoError(t, err)
	assert.False(t, result.Settled)
	assert.Equal(t, PollStatusFailed, result.Status)

	stored, err := stack.orders.FindByReference(context.Background(), "r2b_declined")
	require.NoError(t, err)
	require.NotNil(t, stored.FailureReason)
	assert.Equal(t, "Declined", *stored.FailureReason)
}

func TestVerifyTransportFailureReportsPending(t *testing.T) {
	stack := newSettlementStack(t)
	stack.seedOrder(t, "r2b_down", 100000)
	svc := newTestStatusService(t, stack, &stubVerifier{err: pkgerrors.New(pkgerrors.CodeDependency, "paystack request failed")})

	result, err := svc.Verify(context.Background(), "r2b_down")
	require.NoError(t, err)
	assert.Equal(t, PollStatusPending, result.Status)
}

func TestVerifyMismatchReportsPending(t *testing.T) {
	stack := newSettlementStack(t)
	stack.seedOrder(t, "r2b_short", 100000)
	svc := newTestStatusService(t, stack, &stubVerifier{txn: &paystack.Transaction{Amount: 100, Currency: "NGN", Status: "success"}})

	result, err := svc.Verify(context.Background(), "r2b_short")
	require.NoError(t, err)
	assert.False(t, result.Settled)
	assert.Equal(t, PollStatusPending, result.Status)
}

func TestVerifyUnknownLocalOrderEchoesProcessor(t *testing.T) {
	stack := newSettlementStack(t)
	svc := newTestStatusService(t, stack, &stubVerifier{txn: &paystack.Transaction{Amount: 100, Currency: "NGN", Status: "success"}})

	result, err := svc.Verify(context.Background(), "r2b_elsewhere")
	require.NoError(t, err)
	assert.Equal(t, PollStatusSuccess, result.Status)
	assert.False(t, result.Settled)
}

func TestVerifyRejectsMalformedReference(t *testing.T) {
	stack := newSettlementStack(t)
	verifier := &stubVerifier{}
	svc := newTestStatusService(t, stack, verifier)

	_, err := svc.Verify(context.Background(), "bad ref")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, verifier.callCount())
}
