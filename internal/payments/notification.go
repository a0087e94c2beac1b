package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
)

// EventChargeSuccess is the only processor event that can settle an order.
const EventChargeSuccess = "charge.success"

// Notification is a parsed processor webhook. The concrete types are
// ChargeSuccess and UnknownEvent.
type Notification interface {
	EventName() string
	notification()
}

// ChargeSuccess carries the transaction embedded in a charge.success event.
// Status is passed through as sent; only "success" settles.
type ChargeSuccess struct {
	Event       string
	Reference   string
	AmountMinor int64
	Currency    string
	Status      enums.TransactionStatus
	PaidAt      *time.Time
	OrderID     string
	Metadata    json.RawMessage
	Raw         json.RawMessage
}

func (c ChargeSuccess) EventName() string { return c.Event }
func (ChargeSuccess) notification() {}

// UnknownEvent is acknowledged and ignored.
type UnknownEvent struct {
	Event string
}

func (u UnknownEvent) EventName() string { return u.Event }
func (UnknownEvent) notification() {}

type rawNotification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type rawCharge struct {
	Reference string          `json:"reference"`
	Amount    json.Number     `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	PaidAt    *time.Time      `json:"paid_at"`
	PaidAtAlt *time.Time      `json:"paidAt"`
	Metadata  json.RawMessage `json:"metadata"`
}

// ParseNotification decodes a verified webhook body. It must only be called
// after the signature over the same bytes has been checked.
func ParseNotification(raw []byte) (Notification, error) {
	var envelope rawNotification
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode notification: %w", err)
	}
	event := strings.TrimSpace(envelope.Event)
	if event == "" {
		return nil, errors.New("notification has no event")
	}
	if event != EventChargeSuccess {
		return UnknownEvent{Event: event}, nil
	}

	var charge rawCharge
	dec := json.NewDecoder(bytes.NewReader(envelope.Data))
	dec.UseNumber()
	if err := dec.Decode(&charge); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", event, err)
	}
	reference := strings.TrimSpace(charge.Reference)
	if reference == "" {
		return nil, fmt.Errorf("%s without reference", event)
	}
	amount, err := charge.Amount.Int64()
	if err != nil {
		return nil, fmt.Errorf("%s amount %q is not an integer", event, charge.Amount.String())
	}

	status, err := enums.ParseTransactionStatus(charge.Status)
	if err != nil {
		status = enums.TransactionStatus(strings.ToLower(strings.TrimSpace(charge.Status)))
	}
	paidAt := charge.PaidAt
	if paidAt == nil {
		paidAt = charge.PaidAtAlt
	}

	return ChargeSuccess{
		Event:       event,
		Reference:   reference,
		AmountMinor: amount,
		Currency:    strings.ToUpper(strings.TrimSpace(charge.Currency)),
		Status:      status,
		PaidAt:      paidAt,
		OrderID:     metadataOrderID(charge.Metadata),
		Metadata:    charge.Metadata,
		Raw:         envelope.Data,
	}, nil
}

// metadataOrderID tolerates Paystack sending metadata as an object, an empty
// string or a number.
func metadataOrderID(raw json.RawMessage) string {
	var meta map[string]any
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	for _, key := range []string{"orderId", "order_id"} {
		if v, ok := meta[key]; ok {
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}
