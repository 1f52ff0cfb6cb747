package payments

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// Mutation is the unit of work the repository applies atomically: invoice
// balance deltas plus at most one membership or amount change. Linked
// invoices are row-locked for the duration of the transaction.
type Mutation struct {
	Adjustments []Adjustment
	AddLink     *int64
	AddLinks    []int64
	RemoveLink  *int64
	ClearLinks  bool
	SetAmount   *decimal.Decimal
	Delete      bool
}

// RepositoryPort defines the persistence operations of the allocation engine.
type RepositoryPort interface {
	PayorManager(ctx context.Context, payorID int64) (int64, error)

	CreatePayment(ctx context.Context, p *Payment, invoiceIDs []int64, adjustments []Adjustment) (*Payment, error)
	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, payorID int64) ([]Payment, error)
	Apply(ctx context.Context, paymentID int64, m Mutation) error

	LinkedInvoiceIDs(ctx context.Context, paymentID int64) ([]int64, error)
	GetInvoices(ctx context.Context, ids []int64) ([]invoicing.Invoice, error)
	Revisions(ctx context.Context, paymentID int64) ([]Revision, error)
}

// AuditPort records state-changing operations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BalanceInvalidator drops cached invoicee balances after an allocation
// changes them.
type BalanceInvalidator interface {
	InvalidateBalances(ctx context.Context, invoiceeID int64)
}

// Service implements payment allocation on top of a repository.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	balances BalanceInvalidator
}

// NewService builds a Service instance. balances may be nil when no cache
// sits in front of balance reads.
func NewService(repo RepositoryPort, audit AuditPort, balances BalanceInvalidator) *Service {
	return &Service{repo: repo, audit: audit, balances: balances}
}

func (s *Service) invalidate(ctx context.Context, payorID int64) {
	if s.balances != nil {
		s.balances.InvalidateBalances(ctx, payorID)
	}
}

func (s *Service) authorize(ctx context.Context, actorID, payorID int64) error {
	manager, err := s.repo.PayorManager(ctx, payorID)
	if err != nil {
		return err
	}
	if manager != actorID {
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment",
		EntityID: strconv.FormatInt(entityID, 10),
	})
}

// linkable rejects invoices that cannot receive payments: unfinalized ones,
// credit notes and invoices billed to a different invoicee.
func linkable(inv invoicing.Invoice, payorID int64) error {
	if inv.State != invoicing.StateValidated && inv.State != invoicing.StatePaid {
		return ErrNotLinkable
	}
	if inv.InvoiceeID != payorID {
		return ErrWrongPayor
	}
	return nil
}

// checkSet validates a candidate linked set against an amount: one shared
// currency and enough outstanding balance to absorb the payment. applied is
// the total this payment already contributed to the set, which the update
// would first reverse.
func checkSet(invoices []invoicing.Invoice, amount, applied decimal.Decimal) error {
	if len(invoices) == 0 {
		return ErrNoInvoices
	}
	currency := invoices[0].BaseCurrency
	capacity := applied
	for _, inv := range invoices {
		if inv.BaseCurrency != currency {
			return ErrMixedCurrencies
		}
		capacity = capacity.Add(inv.OutstandingAmount())
	}
	if amount.GreaterThan(capacity) {
		return ErrOverAllocation
	}
	return nil
}

// appliedTotal is the sum this payment currently contributes to its n linked
// invoices. It is n times the rounded share, not the raw amount, so reversal
// exactly cancels what application added.
func appliedTotal(amount decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return Share(amount, n).Mul(decimal.NewFromInt(int64(n)))
}

// CreatePaymentInput carries the fields of a new payment.
type CreatePaymentInput struct {
	PayorID       int64
	PaymentDay    time.Time
	Method        invoicing.PaymentMethod
	PaidAmount    decimal.Decimal
	BankAccountID *int64
	InvoiceIDs    []int64
}

// CreatePayment records a payment and spreads it equally over the given
// invoices. A payment covering zero invoices is rejected outright.
func (s *Service) CreatePayment(ctx context.Context, actorID int64, input CreatePaymentInput) (*Payment, error) {
	if err := s.authorize(ctx, actorID, input.PayorID); err != nil {
		return nil, err
	}
	if input.PaidAmount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	if len(input.InvoiceIDs) == 0 {
		return nil, ErrNoInvoices
	}
	invoices, err := s.repo.GetInvoices(ctx, input.InvoiceIDs)
	if err != nil {
		return nil, err
	}
	if len(invoices) != len(input.InvoiceIDs) {
		return nil, invoicing.ErrNotFound
	}
	for _, inv := range invoices {
		if err := linkable(inv, input.PayorID); err != nil {
			return nil, err
		}
	}
	if err := checkSet(invoices, input.PaidAmount, decimal.Zero); err != nil {
		return nil, err
	}
	method := input.Method
	if method == "" {
		method = invoicing.MethodTransfer
	}
	p := &Payment{
		Reference:     uuid.NewString(),
		PayorID:       input.PayorID,
		PaymentDay:    input.PaymentDay,
		Method:        method,
		PaidAmount:    input.PaidAmount,
		BankAccountID: input.BankAccountID,
	}
	created, err := s.repo.CreatePayment(ctx, p, input.InvoiceIDs, application(input.InvoiceIDs, input.PaidAmount))
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.PayorID)
	s.record(ctx, actorID, "payment.create", created.ID)
	return created, nil
}

func (s *Service) authorizedPayment(ctx context.Context, actorID, id int64) (*Payment, error) {
	p, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actorID, p.PayorID); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPayment returns a single payment after an ownership check.
func (s *Service) GetPayment(ctx context.Context, actorID, id int64) (*Payment, error) {
	return s.authorizedPayment(ctx, actorID, id)
}

// ListPayments returns all payments of one invoicee.
func (s *Service) ListPayments(ctx context.Context, actorID, payorID int64) ([]Payment, error) {
	if err := s.authorize(ctx, actorID, payorID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, payorID)
}

// PaymentDetail is the full read model of a payment.
type PaymentDetail struct {
	Payment   Payment
	Invoices  []invoicing.Invoice
	Share     decimal.Decimal
	Revisions []Revision
}

// GetPaymentDetail assembles a payment with its linked invoices, the current
// per-invoice share and the amount history.
func (s *Service) GetPaymentDetail(ctx context.Context, actorID, id int64) (*PaymentDetail, error) {
	p, err := s.authorizedPayment(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.LinkedInvoiceIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	invoices, err := s.repo.GetInvoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	revisions, err := s.repo.Revisions(ctx, id)
	if err != nil {
		return nil, err
	}
	share := decimal.Zero
	if len(ids) > 0 {
		share = Share(p.PaidAmount, len(ids))
	}
	return &PaymentDetail{Payment: *p, Invoices: invoices, Share: share, Revisions: revisions}, nil
}

// LinkInvoice adds an invoice to the payment's linked set. The previous
// equal split is reversed and a fresh one applied over the grown set, all in
// one transaction.
func (s *Service) LinkInvoice(ctx context.Context, actorID, paymentID, invoiceID int64) error {
	p, err := s.authorizedPayment(ctx, actorID, paymentID)
	if err != nil {
		return err
	}
	current, err := s.repo.LinkedInvoiceIDs(ctx, paymentID)
	if err != nil {
		return err
	}
	for _, id := range current {
		if id == invoiceID {
			return ErrAlreadyLinked
		}
	}
	next := append(append([]int64(nil), current...), invoiceID)
	invoices, err := s.repo.GetInvoices(ctx, next)
	if err != nil {
		return err
	}
	if len(invoices) != len(next) {
		return invoicing.ErrNotFound
	}
	for _, inv := range invoices {
		if inv.ID != invoiceID {
			continue
		}
		if err := linkable(inv, p.PayorID); err != nil {
			return err
		}
	}
	if err := checkSet(invoices, p.PaidAmount, appliedTotal(p.PaidAmount, len(current))); err != nil {
		return err
	}
	m := Mutation{
		Adjustments: merge(reversal(current, p.PaidAmount), application(next, p.PaidAmount)),
		AddLink:     &invoiceID,
	}
	if err := s.repo.Apply(ctx, paymentID, m); err != nil {
		return err
	}
	s.invalidate(ctx, p.PayorID)
	s.record(ctx, actorID, "payment.link", paymentID)
	return nil
}

// UnlinkInvoice removes one invoice from the linked set and respreads the
// payment over the remaining ones. Removing the last invoice leaves the
// payment covering nothing, which only DeletePayment may do; the caller gets
// ErrNoInvoices instead.
func (s *Service) UnlinkInvoice(ctx context.Context, actorID, paymentID, invoiceID int64) error {
	p, err := s.authorizedPayment(ctx, actorID, paymentID)
	if err != nil {
		return err
	}
	current, err := s.repo.LinkedInvoiceIDs(ctx, paymentID)
	if err != nil {
		return err
	}
	remaining := make([]int64, 0, len(current))
	found := false
	for _, id := range current {
		if id == invoiceID {
			found = true
			continue
		}
		remaining = append(remaining, id)
	}
	if !found {
		return ErrNotLinked
	}
	if len(remaining) == 0 {
		return ErrNoInvoices
	}
	m := Mutation{
		Adjustments: merge(reversal(current, p.PaidAmount), application(remaining, p.PaidAmount)),
		RemoveLink:  &invoiceID,
	}
	if err := s.repo.Apply(ctx, paymentID, m); err != nil {
		return err
	}
	s.invalidate(ctx, p.PayorID)
	s.record(ctx, actorID, "payment.unlink", paymentID)
	return nil
}

// ReplaceInvoices swaps the payment's whole linked set in one transaction.
func (s *Service) ReplaceInvoices(ctx context.Context, actorID, paymentID int64, invoiceIDs []int64) error {
	p, err := s.authorizedPayment(ctx, actorID, paymentID)
	if err != nil {
		return err
	}
	if len(invoiceIDs) == 0 {
		return ErrNoInvoices
	}
	current, err := s.repo.LinkedInvoiceIDs(ctx, paymentID)
	if err != nil {
		return err
	}
	invoices, err := s.repo.GetInvoices(ctx, invoiceIDs)
	if err != nil {
		return err
	}
	if len(invoices) != len(invoiceIDs) {
		return invoicing.ErrNotFound
	}
	applied := decimal.Zero
	kept := make(map[int64]bool, len(current))
	for _, id := range current {
		kept[id] = true
	}
	for _, inv := range invoices {
		if err := linkable(inv, p.PayorID); err != nil {
			return err
		}
		if kept[inv.ID] {
			applied = applied.Add(Share(p.PaidAmount, len(current)))
		}
	}
	if err := checkSet(invoices, p.PaidAmount, applied); err != nil {
		return err
	}
	m := Mutation{
		Adjustments: merge(reversal(current, p.PaidAmount), application(invoiceIDs, p.PaidAmount)),
		ClearLinks:  true,
		AddLinks:    append([]int64(nil), invoiceIDs...),
	}
	if err := s.repo.Apply(ctx, paymentID, m); err != nil {
		return err
	}
	s.invalidate(ctx, p.PayorID)
	s.record(ctx, actorID, "payment.relink", paymentID)
	return nil
}

// ClearInvoices detaches every invoice from the payment and retracts its
// split. The payment stays behind with no links; relinking or deletion is the
// expected follow-up.
func (s *Service) ClearInvoices(ctx context.Context, actorID, paymentID int64) error {
	p, err := s.authorizedPayment(ctx, actorID, paymentID)
	if err != nil {
		return err
	}
	current, err := s.repo.LinkedInvoiceIDs(ctx, paymentID)
	if err != nil {
		return err
	}
	m := Mutation{
		Adjustments: reversal(current, p.PaidAmount),
		ClearLinks:  true,
	}
	if err := s.repo.Apply(ctx, paymentID, m); err != nil {
		return err
	}
	s.invalidate(ctx, p.PayorID)
	s.record(ctx, actorID, "payment.clear", paymentID)
	return nil
}

// UpdateAmount changes the payment amount: the previous split, taken from the
// last recorded revision, is reversed and the new amount spread over the same
// set. A revision is appended in the same transaction.
func (s *Service) UpdateAmount(ctx context.Context, actorID, paymentID int64, amount decimal.Decimal) error {
	p, err := s.authorizedPayment(ctx, actorID, paymentID)
	if err != nil {
		return err
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	current, err := s.repo.LinkedInvoiceIDs(ctx, paymentID)
	if err != nil {
		return err
	}
	previous := p.PaidAmount
	revisions, err := s.repo.Revisions(ctx, paymentID)
	if err != nil {
		return err
	}
	if len(revisions) > 0 {
		previous = revisions[len(revisions)-1].PaidAmount
	}
	invoices, err := s.repo.GetInvoices(ctx, current)
	if err != nil {
		return err
	}
	if err := checkSet(invoices, amount, appliedTotal(previous, len(current))); err != nil {
		return err
	}
	m := Mutation{
		Adjustments: merge(reversal(current, previous), application(current, amount)),
		SetAmount:   &amount,
	}
	if err := s.repo.Apply(ctx, paymentID, m); err != nil {
		return err
	}
	s.invalidate(ctx, p.PayorID)
	s.record(ctx, actorID, "payment.amount", paymentID)
	return nil
}

// DeletePayment removes a payment and retracts its split from every linked
// invoice in one transaction.
func (s *Service) DeletePayment(ctx context.Context, actorID, paymentID int64) error {
	p, err := s.authorizedPayment(ctx, actorID, paymentID)
	if err != nil {
		return err
	}
	current, err := s.repo.LinkedInvoiceIDs(ctx, paymentID)
	if err != nil {
		return err
	}
	m := Mutation{
		Adjustments: reversal(current, p.PaidAmount),
		ClearLinks:  true,
		Delete:      true,
	}
	if err := s.repo.Apply(ctx, paymentID, m); err != nil {
		return err
	}
	s.invalidate(ctx, p.PayorID)
	s.record(ctx, actorID, "payment.delete", paymentID)
	return nil
}
