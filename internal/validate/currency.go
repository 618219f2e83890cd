package validate

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is a supported currency with its display symbol and a fixed
// rate expressed in units per US dollar.
type Currency struct {
	Code   string  `json:"code"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	Rate   float64 `json:"rate"`
}

// Currencies lists the supported currencies by code.
var Currencies = map[string]Currency{
	"USD": {"USD", "$", "US Dollar", 1},
	"EUR": {"EUR", "€", "Euro", 0.92},
	"GBP": {"GBP", "£", "British Pound", 0.79},
	"CAD": {"CAD", "C$", "Canadian Dollar", 1.36},
	"AUD": {"AUD", "A$", "Australian Dollar", 1.53},
	"JPY": {"JPY", "¥", "Japanese Yen", 149.5},
	"INR": {"INR", "₹", "Indian Rupee", 83.1},
	"BRL": {"BRL", "R$", "Brazilian Real", 4.97},
	"MXN": {"MXN", "MX$", "Mexican Peso", 17.15},
	"NGN": {"NGN", "₦", "Nigerian Naira", 1550},
}

var enUS = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders amount with the currency's symbol and en-US digit
// grouping. Yen has no minor unit. Unknown codes format as dollars.
func FormatCurrency(amount float64, code string) string {
	c, ok := Currencies[code]
	if !ok {
		c = Currencies["USD"]
	}

	d := decimal.NewFromFloat(amount)
	var formatted string
	if c.Code == "JPY" {
		formatted = enUS.Sprintf("%.0f", d.Abs().Round(0).InexactFloat64())
	} else {
		formatted = enUS.Sprintf("%.2f", d.Abs().Round(2).InexactFloat64())
	}
	if d.IsNegative() {
		return "-" + c.Symbol + formatted
	}
	return c.Symbol + formatted
}

// ConvertToUSD converts amount using the fixed rate for code, rounded to
// cents. Unknown codes are treated as dollars.
func ConvertToUSD(amount float64, code string) float64 {
	rate := 1.0
	if c, ok := Currencies[code]; ok {
		rate = c.Rate
	}
	return RoundAmount(amount / rate)
}
