package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

func TestParseNotificationChargeSuccess(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"r2b_1","amount":100000,"currency":"ngn","status":"success","paid_at":"2026-10-01T12:00:00.000Z","metadata":{"orderId":"ord-7"}}}`)

	n, err := ParseNotification(body)
	require.NoError(t, err)
	charge, ok := n.(ChargeSuccess)
	require.True(t, ok, "got %T", n)
	assert.Equal(t, EventChargeSuccess, charge.EventName())
	assert.Equal(t, "r2b_1", charge.Reference)
	assert.Equal(t, int64(100000), charge.AmountMinor)
	assert.Equal(t, "NGN", charge.Currency)
	assert.Equal(t, enums.TransactionStatusSuccess, charge.Status)
	assert.Equal(t, "ord-7", charge.OrderID)
	require.NotNil(t, charge.PaidAt)
	assert.Equal(t, 2026, charge.PaidAt.Year())
	assert.NotEmpty(t, charge.Raw)
}

func TestParseNotificationCarriesNonSuccessStatus(t *testing.T) {
	n, err := ParseNotification([]byte(`{"event":"charge.success","data":{"reference":"r2b_1","amount":100000,"currency":"NGN","status":"abandoned","metadata":""}}`))
	require.NoError(t, err)
	charge := n.(ChargeSuccess)
	assert.Equal(t, enums.TransactionStatusAbandoned, charge.Status)
	assert.Empty(t, charge.OrderID)
}

func TestParseNotificationUnknownEvent(t *testing.T) {
	n, err := ParseNotification([]byte(`{"event":"transfer.success","data":{"reference":"t_1"}}`))
	require.NoError(t, err)
	unknown, ok := n.(UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "transfer.success", unknown.EventName())
}

func TestParseNotificationErrors(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"event":`,
		"no event":          `{"data":{}}`,
		"missing reference": `{"event":"charge.success","data":{"amount":100,"status":"success"}}`,
		"fractional amount": `{"event":"charge.success","data":{"reference":"r","amount":10.5,"status":"success"}}`,
		"data not object":   `{"event":"charge.success","data":"oops"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseNotification([]byte(body))
			assert.Error(t, err)
		})
	}
}
