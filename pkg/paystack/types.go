package paystack

import (
	"encoding/json"
	"time"
)

// InitializeRequest is the body of POST /transaction/initialize. Amount is in
// the currency's minor unit (kobo for NGN).
type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Reference   string         `json:"reference"`
	Currency    string         `json:"currency,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// InitializeResponse is the data section of a successful initialize call.
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Customer is the subset of the customer object the settlement path reads.
type Customer struct {
	Email string `json:"email"`
}

// Transaction is the data section returned by /transaction/verify and carried
// in charge.* notifications.
type Transaction struct {
	ID              int64           `json:"id"`
	Reference       string          `json:"reference"`
	Amount          int64           `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	GatewayResponse string          `json:"gateway_response"`
	Channel         string          `json:"channel"`
	PaidAt          *time.Time      `json:"paid_at"`
	Customer        Customer        `json:"customer"`
	Metadata        json.RawMessage `json:"metadata"`

	// Raw keeps the original data object for callers that echo it.
	Raw json.RawMessage `json:"-"`
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}
