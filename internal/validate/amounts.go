// Package validate flags suspicious amounts and checks expenses before they
// are stored. Warnings are advisory; nothing here rejects an amount.
package validate

import (
	"math"

	"github.com/shopspring/decimal"
)

// WarningType classifies an amount warning
type WarningType string

const (
	WarningLargeAmount          WarningType = "large_amount"
	WarningExcessiveDecimals    WarningType = "excessive_decimals"
	WarningPossibleDecimalError WarningType = "possible_decimal_error"
)

// AmountWarning is one advisory finding about an amount.
type AmountWarning struct {
	Type    WarningType `json:"type"`
	Message string      `json:"message"`
}

// largeAmountThreshold is the amount above which a value is unusual.
const largeAmountThreshold = 10000

// ValidateAmount returns every warning that applies to amount, in the order
// large, decimals, decimal-point typo. The result is never nil.
func ValidateAmount(amount float64) []AmountWarning {
	warnings := []AmountWarning{}

	if amount > largeAmountThreshold {
		warnings = append(warnings, AmountWarning{
			Type:    WarningLargeAmount,
			Message: "Unusually large amount",
		})
	}

	if DecimalPlaces(amount) > 2 {
		warnings = append(warnings, AmountWarning{
			Type:    WarningExcessiveDecimals,
			Message: "Amount will be rounded to 2 decimals",
		})
	}

	// Round thousands that would be an everyday expense if the decimal point
	// had been typed: 1500 for 15.00.
	if amount >= 1000 && math.Mod(amount, 1000) == 0 && amount/100 < 100 {
		warnings = append(warnings, AmountWarning{
			Type: WarningPossibleDecimalError,
			Message: "Did you mean " + FormatCurrency(amount/100, "USD") +
				" instead of " + FormatCurrency(amount, "USD") + "?",
		})
	}

	return warnings
}

// DecimalPlaces counts the fractional digits of the shortest decimal
// representation of f, so 0.1+0.2 has 17 and 12.50 has 1.
func DecimalPlaces(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	exp := decimal.NewFromFloat(f).Exponent()
	if exp >= 0 {
		return 0
	}
	return int(-exp)
}

// RoundAmount rounds to cents, halves away from zero.
func RoundAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}
