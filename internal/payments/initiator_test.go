package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

func newTestInitiator(t *testing.T, processor *stubInitializer) *Initiator {
	t.Helper()
	initiator, err := NewInitiator(InitiatorParams{
		Processor:    processor,
		AppBaseURL:   "https://r2blaze.example/",
		CallbackPath: "/checkout/success",
		Currency:     enums.CurrencyNGN,
	})
	require.NoError(t, err)
	return initiator
}

func testCart(amountMinor int64) CartSnapshot {
	return CartSnapshot{
		Items:    []CartItem{{ItemID: "w-1", Name: "Chrono 42", UnitPriceMinor: amountMinor, Quantity: 1}},
		Customer: Customer{Name: "Ada", Email: "a@b.com"},
	}
}

func TestInitiateHappyPath(t *testing.T) {
	processor := &stubInitializer{}
	initiator := newTestInitiator(t, processor)

	result, err := initiator.Initiate(context.Background(), testCart(100000), "r2b_1")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/r2b_1", result.RedirectURL)
	assert.Equal(t, PaymentReference("r2b_1"), result.Reference)
	assert.Equal(t, "r2b_1", result.ProcessorReference)
	assert.Equal(t, int64(100000), result.AmountMinor)

	require.Equal(t, 1, processor.callCount())
	req := processor.calls[0]
	assert.Equal(t, "a@b.com", req.Email)
	assert.Equal(t, int64(100000), req.Amount)
	assert.Equal(t, "NGN", req.Currency)
	assert.Equal(t, "https://r2blaze.example/checkout/success?ref=r2b_1", req.CallbackURL)
	assert.Contains(t, req.Metadata, "items")
	assert.Equal(t, "1000.00", req.Metadata["cart_total"])
}

func TestInitiateRejectsAmountBelowFloorBeforeCallingProcessor(t *testing.T) {
	processor := &stubInitializer{}
	initiator := newTestInitiator(t, processor)

	_, err := initiator.Initiate(context.Background(), testCart(50), "r2b_low")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, processor.callCount())
}

func TestInitiateValidation(t *testing.T) {
	cases := map[string]struct {
		cart CartSnapshot
		ref  PaymentReference
	}{
		"missing email":   {cart: CartSnapshot{Items: testCart(1000).Items}, ref: "r2b_a"},
		"malformed email": {cart: CartSnapshot{Items: testCart(1000).Items, Customer: Customer{Email: "nope"}}, ref: "r2b_b"},
		"no items":        {cart: CartSnapshot{Customer: Customer{Email: "a@b.com"}}, ref: "r2b_c"},
		"zero quantity": {cart: CartSnapshot{
			Items:    []CartItem{{Name: "x", UnitPriceMinor: 1000, Quantity: 0}},
			Customer: Customer{Email: "a@b.com"},
		}, ref: "r2b_d"},
		"empty reference":  {cart: testCart(1000), ref: ""},
		"unsafe reference": {cart: testCart(1000), ref: "r2b 1&x"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			processor := &stubInitializer{}
			initiator := newTestInitiator(t, processor)
			_, err := initiator.Initiate(context.Background(), tc.cart, tc.ref)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), err.Error())
			assert.Zero(t, processor.callCount())
		})
	}
}

func TestInitiateRejectsReusedReference(t *testing.T) {
	processor := &stubInitializer{}
	initiator := newTestInitiator(t, processor)

	_, err := initiator.Initiate(context.Background(), testCart(1000), "r2b_once")
	require.NoError(t, err)
	_, err = initiator.Initiate(context.Background(), testCart(1000), "r2b_once")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, 1, processor.callCount())
}

func TestInitiateSurfacesProcessorErrorWithoutRetry(t *testing.T) {
	apiErr := &paystack.APIError{StatusCode: 400, Message: "Invalid Email Address Passed"}
	processor := &stubInitializer{err: pkgerrors.Wrap(pkgerrors.CodeProcessor, apiErr, apiErr.Message)}
	initiator := newTestInitiator(t, processor)

	_, err := initiator.Initiate(context.Background(), testCart(1000), "r2b_rejected")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeProcessor))
	var target *paystack.APIError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "Invalid Email Address Passed", target.Message)
	assert.Equal(t, 1, processor.callCount())

	// The abandoned reference stays burned; a retry needs a fresh one.
	_, err = initiator.Initiate(context.Background(), testCart(1000), "r2b_rejected")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestCallbackURLEscapesReference(t *testing.T) {
	initiator := newTestInitiator(t, &stubInitializer{})
	assert.Equal(t, "https://r2blaze.example/checkout/success?ref=a%3Db", initiator.CallbackURL("a=b"))
}

func TestNewInitiatorRequiresAbsoluteBaseURL(t *testing.T) {
	_, err := NewInitiator(InitiatorParams{Processor: &stubInitializer{}, AppBaseURL: "/relative"})
	assert.Error(t, err)
}
