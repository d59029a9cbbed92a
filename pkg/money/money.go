// Package money holds the currency precision rules shared by every amount
// the marketplace stores or computes.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits kept for every stored amount.
const Places int32 = 2

var hundred = decimal.NewFromInt(100)

// Round applies banker's rounding (half to even) at currency precision.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.RoundBank(Places)
}

// PercentOf returns amount * percent / 100 rounded to currency precision.
func PercentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(percent).Div(hundred))
}

// ValidatePercent rejects percentages outside [0, 100].
func ValidatePercent(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return fmt.Errorf("percent %s must be between 0 and 100", percent.String())
	}
	return nil
}

// ValidateAmount rejects negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount %s must not be negative", amount.StringFixed(Places))
	}
	return nil
}
