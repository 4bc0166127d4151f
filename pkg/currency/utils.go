package currency

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places of the ledger currency (kobo).
const MinorUnitExponent = 2

var (
	ErrNonPositive  = errors.New("amount must be greater than zero")
	ErrTooPrecise   = errors.New("amount has more than two decimal places")
	ErrOutOfRange   = errors.New("amount is too large")
	minorMultiplier = decimal.New(1, MinorUnitExponent)
	maxMinor        = decimal.NewFromInt(1 << 53)
)

type CurrencyUtils struct{}

func NewCurrencyUtils() *CurrencyUtils {
	return &CurrencyUtils{}
}

// ToMinorUnits converts a major-unit amount (e.g. 50.25 NGN) into minor units (5025 kobo).
// Amounts that cannot be represented exactly are rejected rather than rounded.
func (u *CurrencyUtils) ToMinorUnits(major decimal.Decimal) (int64, error) {
	if !major.IsPositive() {
		return 0, ErrNonPositive
	}
	minor := major.Mul(minorMultiplier)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrTooPrecise
	}
	if minor.GreaterThan(maxMinor) {
		return 0, ErrOutOfRange
	}
	return minor.IntPart(), nil
}

// ToMajorUnits converts minor units back to a major-unit decimal for display.
func (u *CurrencyUtils) ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// Format renders minor units with the currency code, e.g. "NGN 5000.00".
func (u *CurrencyUtils) Format(minor int64, currencyCode string) string {
	return fmt.Sprintf("%s %s", currencyCode, u.ToMajorUnits(minor).StringFixed(MinorUnitExponent))
}
