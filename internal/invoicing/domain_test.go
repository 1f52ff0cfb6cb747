package invoicing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixtureFees() []Fee {
	// Two fees of 1000 x 2 at 10% VAT: 2000 + 200 each, 4400 combined.
	return []Fee{
		{ID: 1, RateUnit: dec("1000"), Count: 2, VAT: 10},
		{ID: 2, RateUnit: dec("1000"), Count: 2, VAT: 10},
	}
}

func TestFeeTotals(t *testing.T) {
	f := Fee{RateUnit: dec("1000"), Count: 2, VAT: 10}
	require.Equal(t, "2000.00", f.TotalBeforeVAT().StringFixed(2))
	require.Equal(t, "200.00", f.TotalVAT().StringFixed(2))
	require.Equal(t, "2200.00", f.TotalAfterVAT().StringFixed(2))
}

func TestFeeTotalsRoundHalfEven(t *testing.T) {
	// 33.335 rounds to 33.34, 33.325 rounds down to 33.32.
	f := Fee{RateUnit: dec("333.35"), Count: 1, VAT: 10}
	require.Equal(t, "33.34", f.TotalVAT().StringFixed(2))
	f = Fee{RateUnit: dec("333.25"), Count: 1, VAT: 10}
	require.Equal(t, "33.32", f.TotalVAT().StringFixed(2))
}

func TestSumFeesFixture(t *testing.T) {
	totals := SumFees(fixtureFees())
	require.Equal(t, "4000.00", totals.BeforeVAT.StringFixed(2))
	require.Equal(t, "400.00", totals.VAT.StringFixed(2))
	require.Equal(t, "4400.00", totals.AfterVAT.StringFixed(2))
}

func TestAvgVATUnweighted(t *testing.T) {
	fees := []Fee{
		{RateUnit: dec("10000"), Count: 1, VAT: 20},
		{RateUnit: dec("1"), Count: 1, VAT: 10},
	}
	require.Equal(t, "15.00", AvgVAT(fees).StringFixed(2))
	require.True(t, AvgVAT(nil).IsZero())
}

func TestOutstandingAmount(t *testing.T) {
	inv := Invoice{OwedAmount: dec("4400"), PaidAmount: dec("1100")}
	require.Equal(t, "3300.00", inv.OutstandingAmount().StringFixed(2))

	credit := Invoice{OwedAmount: dec("-4400"), PaidAmount: decimal.Zero}
	require.True(t, credit.OutstandingAmount().IsZero())
}

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestNumberByState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	count := 7

	draft := Invoice{ID: 42, State: StateDraft}
	require.Equal(t, "2026-B-42", draft.Number(now))

	estimate := Invoice{ID: 42, State: StateEstimate}
	require.Equal(t, "2026-D-42", estimate.Number(now))

	validated := Invoice{ID: 42, State: StateValidated, Count: &count, FacturationDate: day("2025-12-20")}
	require.Equal(t, "2025-F-7", validated.Number(now))

	paid := Invoice{ID: 42, State: StatePaid, Count: &count, FacturationDate: day("2025-12-20")}
	require.Equal(t, "2025-F-7", paid.Number(now))

	credited := Invoice{ID: 42, State: StateCredited, Count: &count, FacturationDate: day("2025-12-20")}
	require.Equal(t, "2025-AV-7", credited.Number(now))
}

func TestSequenceClass(t *testing.T) {
	require.Equal(t, SeqInvoice, StateValidated.Class())
	require.Equal(t, SeqInvoice, StatePaid.Class())
	require.Equal(t, SeqCreditNote, StateCredited.Class())
}

func TestStatusDerivation(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	draft := Invoice{State: StateDraft, OwedAmount: dec("100")}
	require.Equal(t, StatusPreliminary, draft.Status(now))

	open := Invoice{State: StateValidated, OwedAmount: dec("100"), DueDate: day("2026-04-01")}
	require.Equal(t, StatusOpen, open.Status(now))

	settled := Invoice{State: StateValidated, OwedAmount: dec("100"), PaidAmount: dec("100"), DueDate: day("2026-01-01")}
	require.Equal(t, StatusSettled, settled.Status(now))

	overdue := Invoice{State: StateValidated, OwedAmount: dec("100"), DueDate: day("2026-03-01")}
	require.Equal(t, StatusOverdue, overdue.Status(now))
}

func TestOverdueBands(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	mk := func(due string) Invoice {
		return Invoice{State: StateValidated, OwedAmount: dec("100"), DueDate: day(due)}
	}
	require.Equal(t, BandDueNow, mk("2026-03-15").Band(now))
	require.Equal(t, BandDueNow, mk("2026-03-14").Band(now))
	require.Equal(t, BandRecent, mk("2026-03-01").Band(now))
	require.Equal(t, BandRecent, mk("2026-02-13").Band(now))
	require.Equal(t, BandLong, mk("2026-01-01").Band(now))

	paid := Invoice{State: StateValidated, OwedAmount: dec("100"), PaidAmount: dec("100"), DueDate: day("2026-01-01")}
	require.Equal(t, BandNone, paid.Band(now))
}
