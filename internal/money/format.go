package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Documents use dot-grouped, comma-decimal amounts (1.000,00).
var docPrinter = message.NewPrinter(language.Spanish)

// FormatAmount renders an amount for invoice documents and bookkeeping labels.
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return docPrinter.Sprint(number.Decimal(f, number.Scale(2)))
}

// FormatWithSymbol renders an amount followed by the currency symbol, or "-"
// for nil/non-positive amounts, matching the statement display rules.
func FormatWithSymbol(d decimal.Decimal, currency string) string {
	if d.Sign() <= 0 {
		return "-"
	}
	if sym := Symbol(currency); sym != "" {
		return FormatAmount(d) + " " + sym
	}
	return FormatAmount(d)
}
