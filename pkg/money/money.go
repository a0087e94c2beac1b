// Package money converts between major currency units as shoppers see them and
// the integer minor units Paystack expects.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitsPerMajor is the subunit factor for every currency Paystack
// settles in (kobo, pesewas, cents).
const MinorUnitsPerMajor = 100

var (
	ErrNotFinite = errors.New("amount is not a finite number")
	ErrNegative  = errors.New("amount must not be negative")
	ErrTooLarge  = errors.New("amount exceeds the supported range")

	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// FromFloat builds a decimal from a JSON number, rejecting NaN and infinities.
func FromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, ErrNotFinite
	}
	return decimal.NewFromFloat(v), nil
}

// ToMinor converts a major-unit amount into minor units, rounding half away
// from zero at the second decimal place.
func ToMinor(major decimal.Decimal) (int64, error) {
	if major.IsNegative() {
		return 0, ErrNegative
	}
	minor := major.Shift(2).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, ErrTooLarge
	}
	return minor.IntPart(), nil
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-2)
}

// Format renders minor units for logs and operator output, e.g. "NGN 5000.00".
func Format(minor int64, currency string) string {
	return fmt.Sprintf("%s %s", currency, FromMinor(minor).StringFixed(2))
}
