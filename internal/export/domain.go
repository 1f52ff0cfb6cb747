// Package export produces the bookkeeping ledger rows and document line
// items derived from finalized invoices.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/money"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
)

// Prefixes configures the client account prefix per jurisdiction.
type Prefixes struct {
	Morocco string
	France  string
}

// DefaultPrefixes are the ledger conventions the original books were kept in.
var DefaultPrefixes = Prefixes{Morocco: "3421", France: "411"}

// Row is one double-entry ledger line of the bookkeeping export.
type Row struct {
	EntryDate       time.Time
	Account         string
	Name            string
	Label           string
	Piece           string
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	FacturationDate time.Time
}

// Headers are the CSV column names, in row order.
var Headers = []string{
	"date", "account", "name", "label", "piece", "debit", "credit", "facturation_date",
}

// prefix returns the client account prefix for the invoicer's jurisdiction.
func (p Prefixes) prefix(country string) string {
	switch country {
	case parties.CountryMorocco:
		return p.Morocco
	case parties.CountryFrance:
		return p.France
	default:
		return ""
	}
}

// padding returns the zero-pad width of client account numbers.
func padding(country string) int {
	switch country {
	case parties.CountryMorocco:
		return 4
	case parties.CountryFrance:
		return 3
	default:
		return 0
	}
}

// ClientAccount renders the ledger account of an invoicee: jurisdiction
// prefix plus the zero-padded bookkeeping number.
func (p Prefixes) ClientAccount(invoicer parties.Invoicer, invoicee parties.Invoicee) string {
	return fmt.Sprintf("%s%0*d", p.prefix(invoicer.Country), padding(invoicer.Country), invoicee.BookKeepingNumber)
}

// PieceRef renders the voucher reference of an invoice: V1 + sequence + year
// of the due date.
func PieceRef(count int, dueDate time.Time) string {
	return fmt.Sprintf("V1%d%d", count, dueDate.Year())
}

// domesticLabel is the entry label for same-currency invoices.
func domesticLabel(count int, invoiceeName string) string {
	return fmt.Sprintf("FACT.%d|%s", count, invoiceeName)
}

// exportLabel carries the pre-VAT base currency total for foreign invoices,
// whose ledger amounts are booked in the bookkeeping currency.
func exportLabel(count int, baseTotal decimal.Decimal, currency, invoiceeName string) string {
	return fmt.Sprintf("FACT.%d|%s%s|%s", count, baseTotal.String(), currency, invoiceeName)
}

// sums aggregates the fee amounts an export needs: the billed pre-VAT total
// in the invoice currency and the bookkeeping-currency net, VAT and gross.
type sums struct {
	baseBeforeVAT decimal.Decimal
	bookNet       decimal.Decimal
	bookVAT       decimal.Decimal
	bookGross     decimal.Decimal
}

func sumForExport(fees []invoicing.Fee) sums {
	s := sums{
		baseBeforeVAT: decimal.Zero,
		bookNet:       decimal.Zero,
		bookVAT:       decimal.Zero,
		bookGross:     decimal.Zero,
	}
	for _, f := range fees {
		s.baseBeforeVAT = s.baseBeforeVAT.Add(f.TotalBeforeVAT())
		vat := money.VATAmount(f.BookKeepingAmount, int64(f.VAT))
		s.bookNet = s.bookNet.Add(f.BookKeepingAmount)
		s.bookVAT = s.bookVAT.Add(vat)
		s.bookGross = s.bookGross.Add(f.BookKeepingAmount.Add(vat))
	}
	return s
}

// BuildRows derives the double-entry rows of one finalized invoice. Domestic
// invoices produce client/VAT/sales lines; foreign ones skip the VAT line
// and book the bookkeeping-currency net only. Credit notes mirror the
// columns.
func (p Prefixes) BuildRows(inv invoicing.Invoice, fees []invoicing.Fee, invoicer parties.Invoicer, invoicee parties.Invoicee) ([]Row, error) {
	if !inv.State.Final() {
		return nil, ErrDraftExport
	}
	if inv.Count == nil || inv.DueDate == nil || inv.FacturationDate == nil {
		return nil, ErrIncompleteInvoice
	}
	s := sumForExport(fees)
	base := Row{
		EntryDate:       *inv.DueDate,
		Name:            invoicee.Name,
		Piece:           PieceRef(*inv.Count, *inv.DueDate),
		FacturationDate: *inv.FacturationDate,
	}
	clientAccount := p.ClientAccount(invoicer, invoicee)
	salesAccount := strconv.Itoa(inv.SalesAccount)

	if invoicer.BookKeepingCurrency != inv.BaseCurrency {
		label := exportLabel(*inv.Count, s.baseBeforeVAT, inv.BaseCurrency, invoicee.Name)
		client, sales := base, base
		client.Account, client.Label = clientAccount, label
		sales.Account, sales.Label = salesAccount, label

		amount := s.bookNet
		if amount.Sign() >= 0 {
			client.Debit = amount
			sales.Credit = amount
		} else {
			client.Credit = amount.Neg()
			sales.Debit = amount.Neg()
		}
		return []Row{client, sales}, nil
	}

	label := domesticLabel(*inv.Count, invoicee.Name)
	client, vat, sales := base, base, base
	client.Account, client.Label = clientAccount, label
	vat.Account, vat.Label = strconv.Itoa(inv.VATAccount), label
	sales.Account, sales.Label = salesAccount, label

	if s.bookNet.Sign() >= 0 {
		client.Debit = money.Round2(s.bookGross)
		vat.Credit = money.Round2(s.bookVAT)
		sales.Credit = s.bookNet
	} else {
		client.Credit = money.Round2(s.bookGross).Neg()
		vat.Debit = money.Round2(s.bookVAT).Neg()
		sales.Debit = s.bookNet.Neg()
	}
	return []Row{client, vat, sales}, nil
}
