package payments

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/money"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// CartItem is one line of the storefront cart at checkout time.
type CartItem struct {
	ItemID         string `json:"itemId"`
	Name           string `json:"name"`
	UnitPriceMinor int64  `json:"unitPriceMinor"`
	Quantity       int    `json:"quantity"`
}

// LineTotalMinor is UnitPriceMinor x Quantity.
func (i CartItem) LineTotalMinor() decimal.Decimal {
	return decimal.NewFromInt(i.UnitPriceMinor).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer is the contact captured on the checkout form.
type Customer struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// CartSnapshot is consumed once, by value, when a payment is initiated.
type CartSnapshot struct {
	Items    []CartItem
	Customer Customer
	Currency enums.Currency
	Metadata map[string]any
}

// TotalMinor sums the cart in minor units.
func (c CartSnapshot) TotalMinor() (int64, error) {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotalMinor())
	}
	if total.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, money.ErrTooLarge
	}
	return total.IntPart(), nil
}

// Validate checks everything that must hold before the processor is called
// and returns the cart total in minor units.
func (c CartSnapshot) Validate(minAmountMinor int64) (int64, error) {
	email := strings.TrimSpace(c.Customer.Email)
	if email == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if err := validate.Var(email, "email"); err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer email is invalid")
	}
	if len(c.Items) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	for idx, item := range c.Items {
		if item.Quantity < 1 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d quantity must be at least 1", idx))
		}
		if item.UnitPriceMinor < 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d unit price must not be negative", idx))
		}
	}
	total, err := c.TotalMinor()
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart total is out of range")
	}
	if total < minAmountMinor {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount is below the minimum").WithDetails(map[string]any{
			"amountMinor":    total,
			"minAmountMinor": minAmountMinor,
		})
	}
	return total, nil
}
