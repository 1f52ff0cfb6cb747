package payments

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

type memoryPaymentRepo struct {
	managers  map[int64]int64
	invoices  map[int64]*invoicing.Invoice
	payments  map[int64]*Payment
	links     map[int64][]int64
	revisions map[int64][]Revision
	nextID    int64
}

func newMemoryPaymentRepo() *memoryPaymentRepo {
	return &memoryPaymentRepo{
		managers:  make(map[int64]int64),
		invoices:  make(map[int64]*invoicing.Invoice),
		payments:  make(map[int64]*Payment),
		links:     make(map[int64][]int64),
		revisions: make(map[int64][]Revision),
	}
}

func (r *memoryPaymentRepo) PayorManager(ctx context.Context, payorID int64) (int64, error) {
	m, ok := r.managers[payorID]
	if !ok {
		return 0, ErrNotFound
	}
	return m, nil
}

func (r *memoryPaymentRepo) CreatePayment(ctx context.Context, p *Payment, invoiceIDs []int64, adjustments []Adjustment) (*Payment, error) {
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.payments[p.ID] = p
	r.links[p.ID] = append([]int64(nil), invoiceIDs...)
	r.revisions[p.ID] = []Revision{{ID: 1, PaymentID: p.ID, PaidAmount: p.PaidAmount, RecordedAt: p.CreatedAt}}
	return p, r.adjust(adjustments)
}

func (r *memoryPaymentRepo) adjust(adjustments []Adjustment) error {
	for _, adj := range adjustments {
		inv, ok := r.invoices[adj.InvoiceID]
		if !ok {
			return invoicing.ErrNotFound
		}
		inv.PaidAmount = inv.PaidAmount.Add(adj.Delta)
	}
	return nil
}

func (r *memoryPaymentRepo) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPaymentRepo) ListPayments(ctx context.Context, payorID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.PayorID == payorID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memoryPaymentRepo) Apply(ctx context.Context, paymentID int64, m Mutation) error {
	p, ok := r.payments[paymentID]
	if !ok {
		return ErrNotFound
	}
	if err := r.adjust(m.Adjustments); err != nil {
		return err
	}
	if m.ClearLinks {
		r.links[paymentID] = nil
	}
	if m.RemoveLink != nil {
		kept := r.links[paymentID][:0]
		for _, id := range r.links[paymentID] {
			if id != *m.RemoveLink {
				kept = append(kept, id)
			}
		}
		r.links[paymentID] = kept
	}
	if m.AddLink != nil {
		r.links[paymentID] = append(r.links[paymentID], *m.AddLink)
	}
	if len(m.AddLinks) > 0 {
		r.links[paymentID] = append(r.links[paymentID], m.AddLinks...)
	}
	if m.SetAmount != nil {
		p.PaidAmount = *m.SetAmount
		r.revisions[paymentID] = append(r.revisions[paymentID], Revision{
			ID: int64(len(r.revisions[paymentID]) + 1), PaymentID: paymentID, PaidAmount: *m.SetAmount, RecordedAt: time.Now(),
		})
	}
	if m.Delete {
		delete(r.payments, paymentID)
		delete(r.links, paymentID)
	}
	return nil
}

func (r *memoryPaymentRepo) LinkedInvoiceIDs(ctx context.Context, paymentID int64) ([]int64, error) {
	return append([]int64(nil), r.links[paymentID]...), nil
}

func (r *memoryPaymentRepo) GetInvoices(ctx context.Context, ids []int64) ([]invoicing.Invoice, error) {
	var out []invoicing.Invoice
	for _, id := range ids {
		if inv, ok := r.invoices[id]; ok {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r *memoryPaymentRepo) Revisions(ctx context.Context, paymentID int64) ([]Revision, error) {
	return append([]Revision(nil), r.revisions[paymentID]...), nil
}

const managerID = int64(7)

// seedInvoice registers a validated invoice owing the classic two-fee total:
// two fees of 1000 x 2 at 10% VAT each, 4400.00 after VAT.
func seedInvoice(r *memoryPaymentRepo, id, payorID int64, owed string) *invoicing.Invoice {
	inv := &invoicing.Invoice{
		ID:           id,
		InvoicerID:   1,
		InvoiceeID:   payorID,
		BaseCurrency: "MAD",
		State:        invoicing.StateValidated,
		PaidAmount:   decimal.Zero,
		OwedAmount:   decimal.RequireFromString(owed),
	}
	r.invoices[id] = inv
	r.managers[payorID] = managerID
	return inv
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreatePaymentSingleInvoice(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10},
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.Reference)
	require.True(t, repo.invoices[10].PaidAmount.Equal(dec("2200.00")))
}

func TestCreatePaymentSplitsEqually(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.NoError(t, err)
	require.True(t, repo.invoices[10].PaidAmount.Equal(dec("1100.00")))
	require.True(t, repo.invoices[11].PaidAmount.Equal(dec("1100.00")))
}

func TestUnlinkRespreadsOverRemaining(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.NoError(t, err)

	require.NoError(t, svc.UnlinkInvoice(context.Background(), managerID, p.ID, 10))
	require.True(t, repo.invoices[10].PaidAmount.IsZero())
	require.True(t, repo.invoices[11].PaidAmount.Equal(dec("2200.00")))
}

func TestLinkThenUnlinkRoundTrips(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10},
	})
	require.NoError(t, err)

	require.NoError(t, svc.LinkInvoice(context.Background(), managerID, p.ID, 11))
	require.True(t, repo.invoices[10].PaidAmount.Equal(dec("1100.00")))
	require.True(t, repo.invoices[11].PaidAmount.Equal(dec("1100.00")))

	require.NoError(t, svc.UnlinkInvoice(context.Background(), managerID, p.ID, 11))
	require.True(t, repo.invoices[10].PaidAmount.Equal(dec("2200.00")))
	require.True(t, repo.invoices[11].PaidAmount.IsZero())
}

func TestSplitConservesTotalWithinRounding(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	seedInvoice(repo, 12, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("100.00"),
		InvoiceIDs: []int64{10, 11, 12},
	})
	require.NoError(t, err)

	total := decimal.Zero
	for _, id := range []int64{10, 11, 12} {
		total = total.Add(repo.invoices[id].PaidAmount)
	}
	// 3 x 33.33; drift stays under one cent per invoice.
	drift := total.Sub(dec("100.00")).Abs()
	require.True(t, drift.LessThanOrEqual(dec("0.03")), "drift %s", drift)
}

func TestCreatePaymentRejectsEmptyInvoiceSet(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("10.00"),
	})
	require.ErrorIs(t, err, ErrNoInvoices)
}

func TestCreatePaymentRejectsOverAllocation(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("4400.01"),
		InvoiceIDs: []int64{10},
	})
	require.ErrorIs(t, err, ErrOverAllocation)
}

func TestCreatePaymentRejectsMixedCurrencies(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	eur := seedInvoice(repo, 11, 3, "4400.00")
	eur.BaseCurrency = "EUR"
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("100.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.ErrorIs(t, err, ErrMixedCurrencies)
}

func TestCreatePaymentRejectsDraftInvoice(t *testing.T) {
	repo := newMemoryPaymentRepo()
	draft := seedInvoice(repo, 10, 3, "4400.00")
	draft.State = invoicing.StateDraft
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("100.00"),
		InvoiceIDs: []int64{10},
	})
	require.ErrorIs(t, err, ErrNotLinkable)
}

func TestCreatePaymentRejectsForeignActor(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	_, err := svc.CreatePayment(context.Background(), managerID+1, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("100.00"),
		InvoiceIDs: []int64{10},
	})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestUnlinkLastInvoiceRejected(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("100.00"),
		InvoiceIDs: []int64{10},
	})
	require.NoError(t, err)
	require.ErrorIs(t, svc.UnlinkInvoice(context.Background(), managerID, p.ID, 10), ErrNoInvoices)
}

func TestUpdateAmountReversesPreviousRevision(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateAmount(context.Background(), managerID, p.ID, dec("1000.00")))
	require.True(t, repo.invoices[10].PaidAmount.Equal(dec("500.00")))
	require.True(t, repo.invoices[11].PaidAmount.Equal(dec("500.00")))

	revs, err := repo.Revisions(context.Background(), p.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	require.True(t, revs[1].PaidAmount.Equal(dec("1000.00")))
}

func TestUpdateAmountRejectsOverAllocation(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("4400.00"),
		InvoiceIDs: []int64{10},
	})
	require.NoError(t, err)

	// The payment already covers the full balance; growing it must fail,
	// shrinking it must not.
	require.ErrorIs(t, svc.UpdateAmount(context.Background(), managerID, p.ID, dec("4400.01")), ErrOverAllocation)
	require.NoError(t, svc.UpdateAmount(context.Background(), managerID, p.ID, dec("4000.00")))
	require.True(t, repo.invoices[10].PaidAmount.Equal(dec("4000.00")))
}

func TestDeletePaymentRetractsAllShares(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeletePayment(context.Background(), managerID, p.ID))
	require.True(t, repo.invoices[10].PaidAmount.IsZero())
	require.True(t, repo.invoices[11].PaidAmount.IsZero())
	_, err = svc.GetPayment(context.Background(), managerID, p.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClearInvoicesRetractsAndKeepsPayment(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ClearInvoices(context.Background(), managerID, p.ID))
	require.True(t, repo.invoices[10].PaidAmount.IsZero())
	require.True(t, repo.invoices[11].PaidAmount.IsZero())

	kept, err := svc.GetPayment(context.Background(), managerID, p.ID)
	require.NoError(t, err)
	require.True(t, kept.PaidAmount.Equal(dec("2200.00")))

	linked, err := repo.LinkedInvoiceIDs(context.Background(), p.ID)
	require.NoError(t, err)
	require.Empty(t, linked)
}

func TestReplaceInvoicesMovesWholeSplit(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	seedInvoice(repo, 11, 3, "4400.00")
	seedInvoice(repo, 12, 3, "4400.00")
	svc := NewService(repo, nil, nil)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10, 11},
	})
	require.NoError(t, err)

	require.NoError(t, svc.ReplaceInvoices(context.Background(), managerID, p.ID, []int64{12}))
	require.True(t, repo.invoices[10].PaidAmount.IsZero())
	require.True(t, repo.invoices[11].PaidAmount.IsZero())
	require.True(t, repo.invoices[12].PaidAmount.Equal(dec("2200.00")))
}

func TestShareRounding(t *testing.T) {
	require.Equal(t, "33.33", Share(dec("100.00"), 3).StringFixed(2))
	require.Equal(t, "0.00", Share(dec("0.01"), 2).StringFixed(2))
	require.Equal(t, "1100.00", Share(dec("2200.00"), 2).StringFixed(2))
}

type recordingInvalidator struct {
	ids []int64
}

func (r *recordingInvalidator) InvalidateBalances(ctx context.Context, invoiceeID int64) {
	r.ids = append(r.ids, invoiceeID)
}

func TestPaymentMutationsInvalidatePayorBalances(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	inval := &recordingInvalidator{}
	svc := NewService(repo, nil, inval)

	p, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("2200.00"),
		InvoiceIDs: []int64{10},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{3}, inval.ids)

	require.NoError(t, svc.DeletePayment(context.Background(), managerID, p.ID))
	require.Equal(t, []int64{3, 3}, inval.ids)
}

func TestRejectedPaymentDoesNotInvalidateBalances(t *testing.T) {
	repo := newMemoryPaymentRepo()
	seedInvoice(repo, 10, 3, "4400.00")
	inval := &recordingInvalidator{}
	svc := NewService(repo, nil, inval)

	_, err := svc.CreatePayment(context.Background(), managerID, CreatePaymentInput{
		PayorID:    3,
		PaymentDay: time.Now(),
		PaidAmount: dec("9000.00"),
		InvoiceIDs: []int64{10},
	})
	require.ErrorIs(t, err, ErrOverAllocation)
	require.Empty(t, inval.ids)
}
