package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRound2HalfEven(t *testing.T) {
	require.Equal(t, "2.44", Round2(dec("2.445")).String())
	require.Equal(t, "2.46", Round2(dec("2.455")).String())
	require.Equal(t, "2.45", Round2(dec("2.451")).String())
}

func TestVATAmount(t *testing.T) {
	require.Equal(t, "200.00", VATAmount(dec("2000"), 10).StringFixed(2))
	require.Equal(t, "0.00", VATAmount(dec("2000"), 0).StringFixed(2))
}

func TestShare(t *testing.T) {
	require.Equal(t, "1100.00", Share(dec("2200"), 2).StringFixed(2))
	require.Equal(t, "33.33", Share(dec("100"), 3).StringFixed(2))
	require.True(t, Share(dec("100"), 0).IsZero())
}

func TestSymbol(t *testing.T) {
	require.Equal(t, "DH", Symbol("MAD"))
	require.Equal(t, "€", Symbol("EUR"))
	require.Equal(t, "€", Symbol("EURO"))
	require.Equal(t, "", Symbol("USD"))
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1.000,00", FormatAmount(dec("1000")))
	require.Equal(t, "1.234.567,89", FormatAmount(dec("1234567.89")))
}

func TestFormatWithSymbol(t *testing.T) {
	require.Equal(t, "1.000,00 DH", FormatWithSymbol(dec("1000"), "MAD"))
	require.Equal(t, "-", FormatWithSymbol(decimal.Zero, "MAD"))
}
