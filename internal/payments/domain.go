package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/money"
)

// Payment records money received from one invoicee, spread over a set of
// linked invoices. The linked set lives in a join table; every amount change
// appends a Revision so edits can be reversed against the prior value.
type Payment struct {
	ID            int64
	Reference     string
	PayorID       int64
	PaymentDay    time.Time
	Method        invoicing.PaymentMethod
	PaidAmount    decimal.Decimal
	BankAccountID *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Revision is one entry of a payment's append-only amount history.
type Revision struct {
	ID         int64
	PaymentID  int64
	PaidAmount decimal.Decimal
	RecordedAt time.Time
}

// Adjustment is a signed delta against one invoice's paid amount.
type Adjustment struct {
	InvoiceID int64
	Delta     decimal.Decimal
}

// Share returns the equal pro-rata slice each of n linked invoices receives.
// The split is deliberately independent of each invoice's balance.
func Share(amount decimal.Decimal, n int) decimal.Decimal {
	return money.Share(amount, n)
}

// reversal removes a previously applied equal split from every invoice in ids,
// computed against the count the split was applied with.
func reversal(ids []int64, amount decimal.Decimal) []Adjustment {
	if len(ids) == 0 {
		return nil
	}
	share := Share(amount, len(ids)).Neg()
	out := make([]Adjustment, 0, len(ids))
	for _, id := range ids {
		out = append(out, Adjustment{InvoiceID: id, Delta: share})
	}
	return out
}

// application applies a fresh equal split of amount over every invoice in ids.
func application(ids []int64, amount decimal.Decimal) []Adjustment {
	if len(ids) == 0 {
		return nil
	}
	share := Share(amount, len(ids))
	out := make([]Adjustment, 0, len(ids))
	for _, id := range ids {
		out = append(out, Adjustment{InvoiceID: id, Delta: share})
	}
	return out
}

// merge folds adjustment lists together, summing deltas per invoice and
// dropping zero entries, so one transaction issues one update per invoice.
func merge(lists ...[]Adjustment) []Adjustment {
	totals := make(map[int64]decimal.Decimal)
	order := make([]int64, 0)
	for _, list := range lists {
		for _, adj := range list {
			if _, seen := totals[adj.InvoiceID]; !seen {
				order = append(order, adj.InvoiceID)
			}
			totals[adj.InvoiceID] = totals[adj.InvoiceID].Add(adj.Delta)
		}
	}
	out := make([]Adjustment, 0, len(order))
	for _, id := range order {
		if totals[id].IsZero() {
			continue
		}
		out = append(out, Adjustment{InvoiceID: id, Delta: totals[id]})
	}
	return out
}
