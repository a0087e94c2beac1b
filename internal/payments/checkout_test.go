package payments

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
)

type fixedInitiator struct {
	calls int
}

func (f *fixedInitiator) Initiate(_ context.Context, cart CartSnapshot, ref PaymentReference) (*InitiateResult, error) {
	f.calls++
	total, err := cart.TotalMinor()
	if err != nil {
		return nil, err
	}
	return &InitiateResult{
		RedirectURL:        "https://checkout.paystack.com/x",
		ProcessorReference: ref.String(),
		Reference:          ref,
		AmountMinor:        total,
		Currency:           enums.CurrencyNGN,
	}, nil
}

func newTestCheckout(t *testing.T, stack *settlementStack, initiator paymentInitiator) *CheckoutService {
	t.Helper()
	svc, err := NewCheckoutService(CheckoutServiceParams{
		DB:              stack.db,
		Orders:          stack.orders,
		Initiator:       initiator,
		Outbox:          stack.outbox,
		ReferencePrefix: "r2b",
	})
	require.NoError(t, err)
	return svc
}

func amount(v float64) *float64 { return &v }

func TestStartPersistsPendingOrder(t *testing.T) {
	stack := newSettlementStack(t)
	processor := &stubInitializer{}
	initiator := newTestInitiator(t, processor)
	svc := newTestCheckout(t, stack, initiator)

	result, err := svc.Start(context.Background(), CheckoutRequest{
		Email:            "a@b.com",
		AmountMajorUnits: amount(1000),
		Reference:        "r2b_1",
		Customer:         Customer{Name: "Ada", Phone: "+2348000000000", Address: "1 Marina, Lagos"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/r2b_1", result.RedirectURL)
	assert.Equal(t, int64(100000), processor.calls[0].Amount)

	order, err := stack.orders.FindByReference(context.Background(), "r2b_1")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, int64(100000), order.AmountMinor)
	assert.Equal(t, "a@b.com", order.Email)
	require.NotNil(t, order.CustomerName)
	assert.Equal(t, "Ada", *order.CustomerName)
	require.NotNil(t, order.AccessCode)

	var items []CartItem
	require.NoError(t, json.Unmarshal(order.Items, &items))
	require.Len(t, items, 1)
	assert.Equal(t, syntheticItemName, items[0].Name)
	assert.Equal(t, 1, stack.events(t, order.ID, enums.EventOrderCreated))
}

func TestStartGeneratesReferenceAndSumsItems(t *testing.T) {
	stack := newSettlementStack(t)
	svc := newTestCheckout(t, stack, &fixedInitiator{})

	result, err := svc.Start(context.Background(), CheckoutRequest{
		Email: "a@b.com",
		Items: []CheckoutItem{
			{ItemID: "w-1", Name: "Chrono 42", UnitPrice: 450.50, Quantity: 2},
			{ItemID: "s-1", Name: "Strap", UnitPrice: 99, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.True(t, referencePattern.MatchString(result.Reference.String()), result.Reference)
	assert.Equal(t, int64(100000), result.AmountMinor)
}

func TestStartRejectsAmountThatDisagreesWithItems(t *testing.T) {
	stack := newSettlementStack(t)
	initiator := &fixedInitiator{}
	svc := newTestCheckout(t, stack, initiator)

	_, err := svc.Start(context.Background(), CheckoutRequest{
		Email:            "a@b.com",
		AmountMajorUnits: amount(10),
		Items:            []CheckoutItem{{Name: "Chrono 42", UnitPrice: 1000, Quantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, initiator.calls)
}

func TestStartRequiresAmountOrItems(t *testing.T) {
	stack := newSettlementStack(t)
	svc := newTestCheckout(t, stack, &fixedInitiator{})

	_, err := svc.Start(context.Background(), CheckoutRequest{Email: "a@b.com"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Start(context.Background(), CheckoutRequest{Email: "a@b.com", AmountMajorUnits: amount(-5)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Start(context.Background(), CheckoutRequest{Email: "a@b.com", AmountMajorUnits: amount(10), Currency: "XYZ"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestStartDuplicateOrderReferenceConflicts(t *testing.T) {
	stack := newSettlementStack(t)
	svc := newTestCheckout(t, stack, &fixedInitiator{})
	req := CheckoutRequest{Email: "a@b.com", AmountMajorUnits: amount(1000), Reference: "r2b_dupe"}

	_, err := svc.Start(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), req)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}
