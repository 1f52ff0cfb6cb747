package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MedGhazal/InvoiceGenerator/internal/export"
	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
)

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func fixtureDetail(currency string) invoicing.InvoiceDetail {
	count := 12
	fees := []invoicing.Fee{
		{Description: "Conseil", RateUnit: decimal.RequireFromString("1000"), Count: 4, VAT: 10},
	}
	return invoicing.InvoiceDetail{
		Invoice: invoicing.Invoice{
			ID:              1,
			InvoicerID:      1,
			InvoiceeID:      3,
			Count:           &count,
			BaseCurrency:    currency,
			State:           invoicing.StateValidated,
			PaymentMethod:   invoicing.MethodTransfer,
			DueDate:         day("2026-04-30"),
			FacturationDate: day("2026-03-31"),
		},
		Projects: []invoicing.ProjectDetail{{
			Project: invoicing.Project{ID: 1, Title: "Refonte SI"},
			Fees:    fees,
			Totals:  invoicing.SumFees(fees),
		}},
		Number: "2026-F-12",
	}
}

func fixtureParties() (parties.Invoicer, parties.Invoicee, parties.BankAccount) {
	invoicer := parties.Invoicer{
		ID:                  1,
		Name:                "Atlas Conseil",
		Address:             "12 Rue des Orangers, Casablanca",
		Country:             parties.CountryMorocco,
		Phone:               "0522000000",
		BookKeepingCurrency: "MAD",
		Legal: &parties.LegalInfo{
			ICE:     "12345678901234",
			RC:      "54321",
			Patente: "87654321",
			CNSS:    "1234567",
			Fiscal:  "654321",
		},
	}
	invoicee := parties.Invoicee{
		ID:      3,
		Name:    "Client SARL",
		Address: "5 Avenue Mohammed V, Rabat",
		Country: parties.CountryMorocco,
		ICE:     "98765432109876",
	}
	account := parties.BankAccount{
		OwnerID:  1,
		BankName: "Banque Populaire",
		BIC:      "BCPOMAMC",
		RIB:      "190780212110077512000678",
		IBAN:     "MA64190780212110077512000678",
	}
	return invoicer, invoicee, account
}

func TestBuildDocumentDomestic(t *testing.T) {
	invoicer, invoicee, account := fixtureParties()
	doc, err := BuildDocument(fixtureDetail("MAD"), invoicer, invoicee, &account)
	require.NoError(t, err)

	require.Equal(t, export.KindInvoice, doc.Kind)
	require.Equal(t, "2026-F-12", doc.Number)
	require.Equal(t, "Virement bancaire", doc.PaymentMethod)
	require.Equal(t, "31-03-2026", doc.FacturationDate)
	require.Equal(t, "Maroc", doc.Invoicer.Country)
	require.Equal(t, []string{"12 Rue des Orangers", "Casablanca"}, doc.Invoicer.AddressLines)
	require.Equal(t, "ICE", doc.Invoicee.Designation)
	require.Equal(t, "98765432109876", doc.Invoicee.DesignationValue)

	// Domestic billing prints the RIB and no VAT exemption note.
	require.Equal(t, "190780212110077512000678", doc.Bank.RIB)
	require.Empty(t, doc.Bank.IBAN)
	require.Empty(t, doc.VATNote)
}

func TestBuildDocumentForeign(t *testing.T) {
	invoicer, invoicee, account := fixtureParties()
	invoicee.Country = parties.CountryFrance
	doc, err := BuildDocument(fixtureDetail("EUR"), invoicer, invoicee, &account)
	require.NoError(t, err)

	require.Equal(t, "SIRET", doc.Invoicee.Designation)
	require.Equal(t, "France", doc.Invoicee.Country)
	require.Equal(t, "MA64190780212110077512000678", doc.Bank.IBAN)
	require.Empty(t, doc.Bank.RIB)
	require.NotEmpty(t, doc.VATNote)
}

func TestBuildDocumentPerson(t *testing.T) {
	invoicer, invoicee, account := fixtureParties()
	invoicee.IsPerson = true
	invoicee.CIN = "AB123456"
	doc, err := BuildDocument(fixtureDetail("MAD"), invoicer, invoicee, &account)
	require.NoError(t, err)

	require.Equal(t, "CIN", doc.Invoicee.Designation)
	require.Equal(t, "AB123456", doc.Invoicee.DesignationValue)
}

func TestBuildDocumentWithoutAccount(t *testing.T) {
	invoicer, invoicee, _ := fixtureParties()
	doc, err := BuildDocument(fixtureDetail("MAD"), invoicer, invoicee, nil)
	require.NoError(t, err)
	require.Nil(t, doc.Bank)
}

func TestBuildDocumentRejectsDraft(t *testing.T) {
	invoicer, invoicee, account := fixtureParties()
	detail := fixtureDetail("MAD")
	detail.Invoice.State = invoicing.StateDraft
	_, err := BuildDocument(detail, invoicer, invoicee, &account)
	require.ErrorIs(t, err, export.ErrDraftExport)
}

func TestBuildDocumentCreditNote(t *testing.T) {
	invoicer, invoicee, account := fixtureParties()
	detail := fixtureDetail("MAD")
	detail.Invoice.State = invoicing.StateCredited
	fees := []invoicing.Fee{{Description: "Avoir 2026-F-12", RateUnit: decimal.RequireFromString("-4000"), Count: 1, VAT: 10}}
	detail.Projects = []invoicing.ProjectDetail{{
		Project: invoicing.Project{Title: "Avoir 2026-F-12"},
		Fees:    fees,
		Totals:  invoicing.SumFees(fees),
	}}
	doc, err := BuildDocument(detail, invoicer, invoicee, &account)
	require.NoError(t, err)
	require.Equal(t, export.KindCreditNote, doc.Kind)
}

func TestRenderHTML(t *testing.T) {
	invoicer, invoicee, account := fixtureParties()
	invoicee.Country = parties.CountryFrance
	doc, err := BuildDocument(fixtureDetail("EUR"), invoicer, invoicee, &account)
	require.NoError(t, err)

	html, err := doc.RenderHTML()
	require.NoError(t, err)
	require.True(t, strings.Contains(html, "Facture 2026-F-12"))
	require.True(t, strings.Contains(html, "Refonte SI"))
	require.True(t, strings.Contains(html, "4.000,00"))
	require.True(t, strings.Contains(html, "IBAN"))
	require.True(t, strings.Contains(html, "article 92-I-1"))
	require.True(t, strings.Contains(html, "RC: 54321"))
}

func TestFileName(t *testing.T) {
	invoicer, _, _ := fixtureParties()
	detail := fixtureDetail("MAD")
	require.Equal(t, "AtlasConseil_2026-F-12.pdf", fileName(&detail, &invoicer))
}
