package payments

import (
	"context"
	"net/http"

	"github.com/r2blaze/r2blaze-backend/api/responses"
	"github.com/r2blaze/r2blaze-backend/api/validators"
	internalpayments "github.com/r2blaze/r2blaze-backend/internal/payments"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
)

const (
	maxInitiateBodyBytes = 64 << 10
	maxReferenceLen      = 100
)

type CheckoutService interface {
	Start(ctx context.Context, req internalpayments.CheckoutRequest) (*internalpayments.InitiateResult, error)
}

type StatusService interface {
	Verify(ctx context.Context, reference string) (*internalpayments.VerifyResult, error)
}

type initiateItem struct {
	ID       string  `json:"id" validate:"max=100"`
	Name     string  `json:"name" validate:"max=200"`
	Price    float64 `json:"price" validate:"gte=0"`
	Quantity int     `json:"quantity" validate:"gte=1"`
}

type initiateCustomer struct {
	Name    string `json:"name" validate:"max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"max=40"`
	Address string `json:"address" validate:"max=500"`
}

// initiateRequest accepts amountNaira as an alias for amountMajorUnits; older
// storefront builds still send it.
type initiateRequest struct {
	Email            string           `json:"email" validate:"omitempty,email"`
	AmountMajorUnits *float64         `json:"amountMajorUnits"`
	AmountNaira      *float64         `json:"amountNaira"`
	Reference        string           `json:"reference" validate:"max=100"`
	Currency         string           `json:"currency" validate:"omitempty,len=3"`
	Items            []initiateItem   `json:"items" validate:"max=100,dive"`
	Customer         initiateCustomer `json:"customer"`
	Metadata         map[string]any   `json:"metadata"`
}

func (r initiateRequest) toCheckout() internalpayments.CheckoutRequest {
	amount := r.AmountMajorUnits
	if amount == nil {
		amount = r.AmountNaira
	}
	items := make([]internalpayments.CheckoutItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, internalpayments.CheckoutItem{
			ItemID:    item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
		})
	}
	return internalpayments.CheckoutRequest{
		Email:            r.Email,
		AmountMajorUnits: amount,
		Reference:        r.Reference,
		Currency:         r.Currency,
		Items:            items,
		Customer: internalpayments.Customer{
			Name:    r.Customer.Name,
			Email:   r.Customer.Email,
			Phone:   r.Customer.Phone,
			Address: r.Customer.Address,
		},
		Metadata: r.Metadata,
	}
}

type initiateResponse struct {
	RedirectURL        string `json:"redirectUrl"`
	ProcessorReference string `json:"processorReference"`
	Reference          string `json:"reference"`
}

// Initiate opens a Paystack transaction for the posted cart and answers with
// the hosted checkout URL.
func Initiate(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxInitiateBodyBytes)
		var req initiateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Start(ctx, req.toCheckout())
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithReference(ctx, result.Reference.String()), "payment.initiated")
		}
		responses.WriteJSON(w, http.StatusOK, initiateResponse{
			RedirectURL:        result.RedirectURL,
			ProcessorReference: result.ProcessorReference,
			Reference:          result.Reference.String(),
		})
	}
}

// Verify answers a storefront status poll for ?reference=.
func Verify(svc StatusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "status service unavailable"))
			return
		}

		reference, err := validators.RequiredQuery(r, "reference", maxReferenceLen)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := svc.Verify(ctx, reference)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteJSON(w, http.StatusOK, result)
	}
}
