package payments

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/money"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

const defaultMinAmountMinor int64 = 100

type transactionInitializer interface {
	InitializeTransaction(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
}

// InitiateResult is what the browser needs to continue on the hosted page.
type InitiateResult struct {
	RedirectURL        string           `json:"redirectUrl"`
	AccessCode         string           `json:"accessCode,omitempty"`
	ProcessorReference string           `json:"processorReference"`
	Reference          PaymentReference `json:"reference"`
	AmountMinor        int64            `json:"amountMinor"`
	Currency           enums.Currency   `json:"currency"`
}

type InitiatorParams struct {
	Processor      transactionInitializer
	Ledger         *ReferenceLedger
	Logger         *logger.Logger
	AppBaseURL     string
	CallbackPath   string
	Currency       enums.Currency
	MinAmountMinor int64
	Timeout        time.Duration
}

// Initiator opens a processor transaction for a cart. It never marks anything
// paid and never retries a rejected call.
type Initiator struct {
	processor      transactionInitializer
	ledger         *ReferenceLedger
	logg           *logger.Logger
	callbackBase   string
	currency       enums.Currency
	minAmountMinor int64
	timeout        time.Duration
}

func NewInitiator(params InitiatorParams) (*Initiator, error) {
	if params.Processor == nil {
		return nil, errors.New("payment processor is required")
	}
	base, err := url.Parse(strings.TrimSpace(params.AppBaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.New("absolute app base url is required")
	}
	ledger := params.Ledger
	if ledger == nil {
		ledger = NewReferenceLedger(0)
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyNGN
	}
	minAmount := params.MinAmountMinor
	if minAmount <= 0 {
		minAmount = defaultMinAmountMinor
	}
	callbackPath := "/" + strings.TrimLeft(params.CallbackPath, "/")
	return &Initiator{
		processor:      params.Processor,
		ledger:         ledger,
		logg:           params.Logger,
		callbackBase:   strings.TrimRight(base.String(), "/") + callbackPath,
		currency:       currency,
		minAmountMinor: minAmount,
		timeout:        params.Timeout,
	}, nil
}

// CallbackURL is where Paystack returns the shopper after payment.
func (i *Initiator) CallbackURL(ref PaymentReference) string {
	return i.callbackBase + "?ref=" + url.QueryEscape(ref.String())
}

func (i *Initiator) Initiate(ctx context.Context, cart CartSnapshot, ref PaymentReference) (*InitiateResult, error) {
	total, err := cart.Validate(i.minAmountMinor)
	if err != nil {
		return nil, err
	}
	if !ref.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is missing or malformed")
	}
	currency := cart.Currency
	if currency == "" {
		currency = i.currency
	}
	if !i.ledger.Claim(ref) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "reference already used").WithDetails(map[string]any{
			"reference": ref.String(),
		})
	}

	req := paystack.InitializeRequest{
		Email:       strings.TrimSpace(cart.Customer.Email),
		Amount:      total,
		Reference:   ref.String(),
		Currency:    currency.String(),
		CallbackURL: i.CallbackURL(ref),
		Metadata:    buildMetadata(cart, total),
	}

	callCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	resp, err := i.processor.InitializeTransaction(callCtx, req)
	if err != nil {
		if i.logg != nil {
			i.logg.Warn(i.logg.WithField(i.logg.WithReference(ctx, ref.String()), "error", err.Error()), "payment initiation failed")
		}
		return nil, err
	}

	processorRef := resp.Reference
	if processorRef == "" {
		processorRef = ref.String()
	}
	if i.logg != nil {
		i.logg.Info(i.logg.WithFields(i.logg.WithReference(ctx, ref.String()), map[string]any{
			"amount": money.Format(total, currency.String()),
		}), "payment initiated")
	}
	return &InitiateResult{
		RedirectURL:        resp.AuthorizationURL,
		AccessCode:         resp.AccessCode,
		ProcessorReference: processorRef,
		Reference:          ref,
		AmountMinor:        total,
		Currency:           currency,
	}, nil
}

func buildMetadata(cart CartSnapshot, total int64) map[string]any {
	meta := make(map[string]any, len(cart.Metadata)+3)
	for k, v := range cart.Metadata {
		meta[k] = v
	}
	meta["items"] = cart.Items
	meta["customer"] = cart.Customer
	meta["cart_total"] = money.FromMinor(total).StringFixed(2)
	return meta
}
