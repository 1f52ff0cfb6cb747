package invoicing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/money"
)

// State enumerates invoice lifecycle states.
type State int

const (
	StateDraft State = iota
	StateEstimate
	StateValidated
	StatePaid
	StateCredited
)

// Final reports whether the state carries a sequence number.
func (s State) Final() bool {
	return s == StateValidated || s == StatePaid || s == StateCredited
}

func (s State) String() string {
	switch s {
	case StateDraft:
		return "DRAFT"
	case StateEstimate:
		return "ESTIMATE"
	case StateValidated:
		return "VALIDATED"
	case StatePaid:
		return "PAID"
	case StateCredited:
		return "CREDITED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// SequenceClass identifies the numbering bucket a state belongs to.
// Validated and Paid invoices share one sequence, credit notes another.
type SequenceClass int

const (
	SeqInvoice SequenceClass = iota
	SeqCreditNote
)

// Class returns the sequence class for a final state.
func (s State) Class() SequenceClass {
	if s == StateCredited {
		return SeqCreditNote
	}
	return SeqInvoice
}

// PaymentMethod codes mirror the bookkeeping conventions of the source ledgers.
type PaymentMethod string

const (
	MethodTransfer       PaymentMethod = "TR"
	MethodCash           PaymentMethod = "CS"
	MethodCheck          PaymentMethod = "CK"
	MethodCreditNote     PaymentMethod = "CN"
	MethodCreditCard     PaymentMethod = "CD"
	MethodDebitCard      PaymentMethod = "DC"
	MethodDirectDebit    PaymentMethod = "DD"
	MethodBillOfExchange PaymentMethod = "BE"
	MethodDivers         PaymentMethod = "DV"
)

// Invoice is the aggregate root of the billing engine. PaidAmount and
// OwedAmount are maintained incrementally by the service layer; Status is
// always derived, never stored.
type Invoice struct {
	ID              int64
	InvoicerID      int64
	InvoiceeID      int64
	BankAccountID   *int64
	Count           *int
	BaseCurrency    string
	DueDate         *time.Time
	FacturationDate *time.Time
	PaymentMethod   PaymentMethod
	SalesAccount    int
	VATAccount      int
	State           State
	PaidAmount      decimal.Decimal
	OwedAmount      decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Project groups fees within one invoice.
type Project struct {
	ID        int64
	InvoiceID int64
	Title     string
}

// Fee is a single line item. BookKeepingAmount is the amount carried into
// accounting exports, kept separate from the billed rate.
type Fee struct {
	ID                int64
	ProjectID         int64
	Description       string
	RateUnit          decimal.Decimal
	Count             int
	VAT               int
	BookKeepingAmount decimal.Decimal
}

// TotalBeforeVAT returns rateUnit * count.
func (f Fee) TotalBeforeVAT() decimal.Decimal {
	return f.RateUnit.Mul(decimal.NewFromInt(int64(f.Count)))
}

// TotalVAT returns the rounded VAT portion of the fee.
func (f Fee) TotalVAT() decimal.Decimal {
	return money.VATAmount(f.TotalBeforeVAT(), int64(f.VAT))
}

// TotalAfterVAT rounds the pre-VAT sum plus VAT; rounding is applied to the
// combined amount so line totals never compound rounding error.
func (f Fee) TotalAfterVAT() decimal.Decimal {
	return money.Round2(f.TotalBeforeVAT().Add(f.TotalVAT()))
}

// Totals aggregates fee amounts bottom-up. Aggregate levels sum the already
// rounded child totals without rounding again.
type Totals struct {
	BeforeVAT decimal.Decimal
	VAT       decimal.Decimal
	AfterVAT  decimal.Decimal
}

// SumFees computes project- or invoice-level totals over child fees.
func SumFees(fees []Fee) Totals {
	t := Totals{BeforeVAT: decimal.Zero, VAT: decimal.Zero, AfterVAT: decimal.Zero}
	for _, f := range fees {
		t.BeforeVAT = t.BeforeVAT.Add(f.TotalBeforeVAT())
		t.VAT = t.VAT.Add(f.TotalVAT())
		t.AfterVAT = t.AfterVAT.Add(f.TotalAfterVAT())
	}
	return t
}

// AvgVAT is the unweighted arithmetic mean of the fees' VAT rates. It is
// deliberately not value-weighted; credit notes inherit it as their rate.
func AvgVAT(fees []Fee) decimal.Decimal {
	if len(fees) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, f := range fees {
		sum = sum.Add(decimal.NewFromInt(int64(f.VAT)))
	}
	return sum.Div(decimal.NewFromInt(int64(len(fees))))
}

// OutstandingAmount returns owed minus paid, floored at zero for invoices
// that owe nothing.
func (i Invoice) OutstandingAmount() decimal.Decimal {
	if i.OwedAmount.Sign() > 0 {
		return i.OwedAmount.Sub(i.PaidAmount)
	}
	return decimal.Zero
}

// SequenceYear returns the calendar year scoping the invoice's number.
func (i Invoice) SequenceYear() int {
	if i.FacturationDate == nil {
		return 0
	}
	return i.FacturationDate.Year()
}

// Number renders the display reference: drafts and estimates are referenced by
// row id, finalized invoices and credit notes by their assigned sequence.
func (i Invoice) Number(today time.Time) string {
	switch i.State {
	case StateDraft:
		return fmt.Sprintf("%d-B-%d", today.Year(), i.ID)
	case StateEstimate:
		return fmt.Sprintf("%d-D-%d", today.Year(), i.ID)
	case StateCredited:
		return fmt.Sprintf("%d-AV-%d", i.SequenceYear(), sequence(i.Count))
	default:
		return fmt.Sprintf("%d-F-%d", i.SequenceYear(), sequence(i.Count))
	}
}

func sequence(count *int) int {
	if count == nil {
		return 0
	}
	return *count
}
