package parties

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validInvoicer() Invoicer {
	return Invoicer{
		ManagerID:           7,
		Name:                "Atlas Conseil",
		Address:             "12 Rue des Fleurs, Casablanca",
		Country:             CountryMorocco,
		Phone:               "0612345678",
		BookKeepingCurrency: "MAD",
	}
}

func TestInvoicerValidation(t *testing.T) {
	require.NoError(t, validInvoicer().Validate())

	inv := validInvoicer()
	inv.Name = ""
	require.ErrorIs(t, inv.Validate(), ErrInvalidName)

	inv = validInvoicer()
	inv.Country = "ES"
	require.ErrorIs(t, inv.Validate(), ErrInvalidCountry)

	inv = validInvoicer()
	inv.Phone = "abc"
	require.ErrorIs(t, inv.Validate(), ErrInvalidPhone)

	inv = validInvoicer()
	inv.Phone = "+212612345678"
	require.NoError(t, inv.Validate())
}

func TestLegalInfoValidation(t *testing.T) {
	l := LegalInfo{ICE: "001234567890123", RC: "12345", Patente: "12345678", CNSS: "1234567", Fiscal: "123456"}
	require.NoError(t, l.Validate())

	l.ICE = "123"
	require.ErrorIs(t, l.Validate(), ErrInvalidICE)

	l = LegalInfo{RC: "1234"}
	require.ErrorIs(t, l.Validate(), ErrInvalidLegalInfo)
}

func TestBankAccountValidation(t *testing.T) {
	acc := BankAccount{
		BankName: "Banque Populaire",
		BIC:      "BCPOMAMC",
		RIB:      "190780212110987654321234",
		IBAN:     "MA640117639000012345678901",
	}
	require.NoError(t, acc.Validate())

	acc.BIC = "XX1"
	require.ErrorIs(t, acc.Validate(), ErrInvalidBIC)

	acc = BankAccount{RIB: "123"}
	require.ErrorIs(t, acc.Validate(), ErrInvalidRIB)

	acc = BankAccount{IBAN: "12345678901234567890123456"}
	require.ErrorIs(t, acc.Validate(), ErrInvalidIBAN)
}

func TestInvoiceeValidation(t *testing.T) {
	c := Invoicee{
		InvoicerID:        1,
		Name:              "Client SARL",
		Address:           "5 Avenue Hassan II, Rabat",
		Country:           CountryMorocco,
		ICE:               "001234567890123",
		BookKeepingNumber: 3421,
	}
	require.NoError(t, c.Validate())

	// Street and city must be comma separated for document rendering.
	c.Address = "5 Avenue Hassan II Rabat"
	require.ErrorIs(t, c.Validate(), ErrInvalidAddress)

	c.Address = "5 Avenue Hassan II, Rabat"
	c.BookKeepingNumber = 100000
	require.ErrorIs(t, c.Validate(), ErrInvalidBookKeepingNumber)

	c.BookKeepingNumber = 1
	c.ICE = "12"
	require.ErrorIs(t, c.Validate(), ErrInvalidICE)

	// Persons identify with a CIN; ICE format is not enforced.
	c.IsPerson = true
	c.CIN = "AB123456"
	c.ICE = ""
	require.NoError(t, c.Validate())
}

func TestDesignation(t *testing.T) {
	person := Invoicee{IsPerson: true, CIN: "AB123456"}
	require.Equal(t, "CIN", person.Designation())
	require.Equal(t, "AB123456", person.DesignationValue())

	moroccan := Invoicee{Country: CountryMorocco, ICE: "001234567890123"}
	require.Equal(t, "ICE", moroccan.Designation())

	french := Invoicee{Country: CountryFrance, ICE: "12345678901234"}
	require.Equal(t, "SIRET", french.Designation())
	require.Equal(t, "12345678901234", french.DesignationValue())
}
