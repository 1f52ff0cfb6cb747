// Package money provides fixed-point monetary arithmetic and currency helpers.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is the zero monetary amount.
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Round2 rounds to two decimal places using banker's rounding.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Share splits an amount equally over n parts, rounded to two places.
// Zero parts yield a zero share.
func Share(amount decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return Round2(amount.Div(decimal.NewFromInt(int64(n))))
}

// VATAmount returns the rounded VAT portion of a pre-tax amount.
func VATAmount(beforeVAT decimal.Decimal, vatPct int64) decimal.Decimal {
	return Round2(beforeVAT.Mul(decimal.NewFromInt(vatPct)).Div(hundred))
}

// Symbol maps a currency code to its display symbol.
func Symbol(code string) string {
	switch strings.ToUpper(code) {
	case "MAD":
		return "DH"
	case "EUR", "EURO":
		return "€"
	default:
		return ""
	}
}
