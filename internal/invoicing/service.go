package invoicing

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// ListKind selects which invoice family a listing returns.
type ListKind string

const (
	ListInvoices    ListKind = "invoices"
	ListEstimates   ListKind = "estimates"
	ListCreditNotes ListKind = "creditnotes"
)

// ListFilter narrows invoice listings; zero dates default to the current year.
type ListFilter struct {
	InvoicerID int64
	Kind       ListKind
	From       time.Time
	To         time.Time
}

// RepositoryPort defines the persistence operations the billing engine needs.
// Mutations that touch both a child row and the parent invoice's running
// totals are single transactional primitives.
type RepositoryPort interface {
	InvoicerManager(ctx context.Context, invoicerID int64) (int64, error)

	CreateInvoice(ctx context.Context, inv *Invoice) (*Invoice, error)
	GetInvoice(ctx context.Context, id int64) (*Invoice, error)
	UpdateInvoiceMeta(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, id int64) error
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)

	InsertProject(ctx context.Context, p *Project) (*Project, error)
	RenameProject(ctx context.Context, id int64, title string) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	ListProjects(ctx context.Context, invoiceID int64) ([]Project, error)
	CountProjects(ctx context.Context, invoiceID int64) (int, error)
	DeleteProject(ctx context.Context, projectID int64, owedDelta decimal.Decimal) error

	InsertFee(ctx context.Context, f *Fee, owedDelta decimal.Decimal) (*Fee, error)
	GetFee(ctx context.Context, id int64) (*Fee, error)
	UpdateFee(ctx context.Context, f *Fee, newOwed decimal.Decimal) error
	DeleteFee(ctx context.Context, feeID int64, owedDelta decimal.Decimal) error
	ListFees(ctx context.Context, projectID int64) ([]Fee, error)
	ListInvoiceFees(ctx context.Context, invoiceID int64) ([]Fee, error)

	Finalize(ctx context.Context, invoiceID int64, state State) (*Invoice, error)
	InsertCreditNote(ctx context.Context, originalID int64, note *Invoice, project *Project, fee *Fee) (*Invoice, error)
}

// AuditPort records state-changing operations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BalanceInvalidator drops cached invoicee balances after an invoice
// mutation changes what they are computed from.
type BalanceInvalidator interface {
	InvalidateBalances(ctx context.Context, invoiceeID int64)
}

// Service implements the invoice balance engine on top of a repository.
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

func (s *Service) invalidate(ctx context.Context, invoiceeID int64) {
	if s.balances != nil {
		s.balances.InvalidateBalances(ctx, invoiceeID)
	}
}

// CreateInvoiceInput carries the fields of a new draft or estimate.
type CreateInvoiceInput struct {
	InvoicerID      int64
	InvoiceeID      int64
	BankAccountID   *int64
	BaseCurrency    string
	DueDate         *time.Time
	FacturationDate *time.Time
	PaymentMethod   PaymentMethod
	SalesAccount    int
	VATAccount      int
	Estimate        bool
}

func (s *Service) authorize(ctx context.Context, actorID, invoicerID int64) error {
	manager, err := s.repo.InvoicerManager(ctx, invoicerID)
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
		Entity:   "invoice",
		EntityID: strconv.FormatInt(entityID, 10),
	})
}

// validateDates enforces the date invariants for non-estimate invoices.
func validateDates(due, facturation *time.Time, estimate bool) error {
	if (due == nil || facturation == nil) && !estimate {
		return ErrDatesRequired
	}
	if due != nil && facturation != nil && due.Before(*facturation) {
		return ErrDueBeforeFacturation
	}
	return nil
}

// CreateInvoice creates a draft or estimate. Sequence numbers are never
// assigned at creation time.
func (s *Service) CreateInvoice(ctx context.Context, actorID int64, input CreateInvoiceInput) (*Invoice, error) {
	if err := s.authorize(ctx, actorID, input.InvoicerID); err != nil {
		return nil, err
	}
	if err := validateDates(input.DueDate, input.FacturationDate, input.Estimate); err != nil {
		return nil, err
	}
	state := StateDraft
	if input.Estimate {
		state = StateEstimate
	}
	method := input.PaymentMethod
	if method == "" {
		method = MethodCash
	}
	inv := &Invoice{
		InvoicerID:      input.InvoicerID,
		InvoiceeID:      input.InvoiceeID,
		BankAccountID:   input.BankAccountID,
		BaseCurrency:    input.BaseCurrency,
		DueDate:         input.DueDate,
		FacturationDate: input.FacturationDate,
		PaymentMethod:   method,
		SalesAccount:    input.SalesAccount,
		VATAccount:      input.VATAccount,
		State:           state,
		PaidAmount:      decimal.Zero,
		OwedAmount:      decimal.Zero,
	}
	created, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.InvoiceeID)
	s.record(ctx, actorID, "invoice.create", created.ID)
	return created, nil
}

// UpdateInvoiceInput carries editable invoice metadata.
type UpdateInvoiceInput struct {
	InvoiceeID      int64
	BankAccountID   *int64
	BaseCurrency    string
	DueDate         *time.Time
	FacturationDate *time.Time
	PaymentMethod   PaymentMethod
	SalesAccount    int
	VATAccount      int
}

// UpdateInvoiceMeta edits invoice metadata; amounts and state are untouched.
func (s *Service) UpdateInvoiceMeta(ctx context.Context, actorID, id int64, input UpdateInvoiceInput) (*Invoice, error) {
	inv, err := s.authorizedInvoice(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if err := validateDates(input.DueDate, input.FacturationDate, inv.State == StateEstimate); err != nil {
		return nil, err
	}
	inv.InvoiceeID = input.InvoiceeID
	inv.BankAccountID = input.BankAccountID
	inv.BaseCurrency = input.BaseCurrency
	inv.DueDate = input.DueDate
	inv.FacturationDate = input.FacturationDate
	inv.PaymentMethod = input.PaymentMethod
	inv.SalesAccount = input.SalesAccount
	inv.VATAccount = input.VATAccount
	if err := s.repo.UpdateInvoiceMeta(ctx, inv); err != nil {
		return nil, err
	}
	s.invalidate(ctx, inv.InvoiceeID)
	s.record(ctx, actorID, "invoice.update", id)
	return inv, nil
}

func (s *Service) authorizedInvoice(ctx context.Context, actorID, id int64) (*Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actorID, inv.InvoicerID); err != nil {
		return nil, err
	}
	return inv, nil
}

// DeleteInvoice removes a draft or estimate; finalized invoices are immutable.
func (s *Service) DeleteInvoice(ctx context.Context, actorID, id int64) error {
	inv, err := s.authorizedInvoice(ctx, actorID, id)
	if err != nil {
		return err
	}
	if inv.State != StateDraft && inv.State != StateEstimate {
		return ErrNotEditable
	}
	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, inv.InvoiceeID)
	s.record(ctx, actorID, "invoice.delete", id)
	return nil
}

// GetInvoice returns a single invoice after an ownership check.
func (s *Service) GetInvoice(ctx context.Context, actorID, id int64) (*Invoice, error) {
	return s.authorizedInvoice(ctx, actorID, id)
}

// ProjectDetail pairs a project with its fees and totals.
type ProjectDetail struct {
	Project Project
	Fees    []Fee
	Totals  Totals
	AvgVAT  decimal.Decimal
}

// InvoiceDetail is the full read model of an invoice.
type InvoiceDetail struct {
	Invoice  Invoice
	Projects []ProjectDetail
	Totals   Totals
	AvgVAT   decimal.Decimal
	Status   PaymentStatus
	Band     OverdueBand
	Number   string
}

// GetInvoiceDetail assembles the invoice with projects, fees and derived
// totals and status.
func (s *Service) GetInvoiceDetail(ctx context.Context, actorID, id int64) (*InvoiceDetail, error) {
	inv, err := s.authorizedInvoice(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	projects, err := s.repo.ListProjects(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &InvoiceDetail{Invoice: *inv}
	allFees := make([]Fee, 0)
	avgSum := decimal.Zero
	for _, p := range projects {
		fees, err := s.repo.ListFees(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		pd := ProjectDetail{Project: p, Fees: fees, Totals: SumFees(fees), AvgVAT: AvgVAT(fees)}
		detail.Projects = append(detail.Projects, pd)
		allFees = append(allFees, fees...)
		avgSum = avgSum.Add(pd.AvgVAT)
	}
	detail.Totals = SumFees(allFees)
	if len(projects) > 0 {
		// Mean of per-project means, as the statement views report it.
		detail.AvgVAT = avgSum.Div(decimal.NewFromInt(int64(len(projects))))
	} else {
		detail.AvgVAT = decimal.Zero
	}
	now := time.Now()
	detail.Status = inv.Status(now)
	detail.Band = inv.Band(now)
	detail.Number = inv.Number(now)
	return detail, nil
}

// ListInvoices returns invoices of one invoicer after an ownership check.
func (s *Service) ListInvoices(ctx context.Context, actorID int64, filter ListFilter) ([]Invoice, error) {
	if err := s.authorize(ctx, actorID, filter.InvoicerID); err != nil {
		return nil, err
	}
	if filter.From.IsZero() || filter.To.IsZero() {
		year := time.Now().Year()
		filter.From = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		filter.To = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return s.repo.ListInvoices(ctx, filter)
}

// AddProject appends an empty project to an editable invoice.
func (s *Service) AddProject(ctx context.Context, actorID, invoiceID int64, title string) (*Project, error) {
	inv, err := s.authorizedInvoice(ctx, actorID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.State == StateCredited {
		return nil, ErrNotEditable
	}
	p, err := s.repo.InsertProject(ctx, &Project{InvoiceID: invoiceID, Title: title})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "invoice.project.add", invoiceID)
	return p, nil
}

// RenameProject retitles a project; totals are unaffected.
func (s *Service) RenameProject(ctx context.Context, actorID, projectID int64, title string) error {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if _, err := s.authorizedInvoice(ctx, actorID, p.InvoiceID); err != nil {
		return err
	}
	return s.repo.RenameProject(ctx, projectID, title)
}

// RemoveProject deletes a project and retracts its after-VAT total from the
// parent invoice's owed amount in one transaction.
func (s *Service) RemoveProject(ctx context.Context, actorID, projectID int64) error {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	inv, err := s.authorizedInvoice(ctx, actorID, p.InvoiceID)
	if err != nil {
		return err
	}
	if inv.State.Final() {
		count, err := s.repo.CountProjects(ctx, inv.ID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastProject
		}
	}
	fees, err := s.repo.ListFees(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProject(ctx, projectID, SumFees(fees).AfterVAT); err != nil {
		return err
	}
	s.invalidate(ctx, inv.InvoiceeID)
	s.record(ctx, actorID, "invoice.project.remove", inv.ID)
	return nil
}

// FeeInput carries the attributes of a line item.
type FeeInput struct {
	Description       string
	RateUnit          decimal.Decimal
	Count             int
	VAT               int
	BookKeepingAmount decimal.Decimal
}

// AddFee inserts a fee and adds its after-VAT total to the parent invoice's
// owed amount in one transaction.
func (s *Service) AddFee(ctx context.Context, actorID, projectID int64, input FeeInput) (*Fee, error) {
	p, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	inv, err := s.authorizedInvoice(ctx, actorID, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	fee := &Fee{
		ProjectID:         projectID,
		Description:       input.Description,
		RateUnit:          input.RateUnit,
		Count:             input.Count,
		VAT:               input.VAT,
		BookKeepingAmount: input.BookKeepingAmount,
	}
	created, err := s.repo.InsertFee(ctx, fee, fee.TotalAfterVAT())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, inv.InvoiceeID)
	s.record(ctx, actorID, "invoice.fee.add", inv.ID)
	return created, nil
}

// UpdateFee edits a fee in place. The invoice's owed amount is recomputed
// from the full child sum rather than patched with a delta, so in-place rate
// or VAT edits can never drift the running total.
func (s *Service) UpdateFee(ctx context.Context, actorID, feeID int64, input FeeInput) (*Fee, error) {
	fee, err := s.repo.GetFee(ctx, feeID)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetProject(ctx, fee.ProjectID)
	if err != nil {
		return nil, err
	}
	inv, err := s.authorizedInvoice(ctx, actorID, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	fee.Description = input.Description
	fee.RateUnit = input.RateUnit
	fee.Count = input.Count
	fee.VAT = input.VAT
	fee.BookKeepingAmount = input.BookKeepingAmount

	fees, err := s.repo.ListInvoiceFees(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	for i := range fees {
		if fees[i].ID == fee.ID {
			fees[i] = *fee
		}
	}
	if err := s.repo.UpdateFee(ctx, fee, SumFees(fees).AfterVAT); err != nil {
		return nil, err
	}
	s.invalidate(ctx, inv.InvoiceeID)
	s.record(ctx, actorID, "invoice.fee.update", inv.ID)
	return fee, nil
}

// RemoveFee deletes a fee and subtracts its after-VAT total from the parent
// invoice's owed amount in one transaction.
func (s *Service) RemoveFee(ctx context.Context, actorID, feeID int64) error {
	fee, err := s.repo.GetFee(ctx, feeID)
	if err != nil {
		return err
	}
	p, err := s.repo.GetProject(ctx, fee.ProjectID)
	if err != nil {
		return err
	}
	inv, err := s.authorizedInvoice(ctx, actorID, p.InvoiceID)
	if err != nil {
		return err
	}
	if inv.State.Final() {
		fees, err := s.repo.ListFees(ctx, p.ID)
		if err != nil {
			return err
		}
		if len(fees) <= 1 {
			return ErrLastFee
		}
	}
	if err := s.repo.DeleteFee(ctx, feeID, fee.TotalAfterVAT()); err != nil {
		return err
	}
	s.invalidate(ctx, inv.InvoiceeID)
	s.record(ctx, actorID, "invoice.fee.remove", inv.ID)
	return nil
}

// ValidateInvoice finalizes a draft or estimate: the invoice must have at
// least one project and every project at least one fee. The sequence number
// is assigned inside the finalizing transaction.
func (s *Service) ValidateInvoice(ctx context.Context, actorID, id int64) (*Invoice, error) {
	inv, err := s.authorizedInvoice(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if inv.State.Final() {
		return nil, ErrAlreadyFinal
	}
	if err := validateDates(inv.DueDate, inv.FacturationDate, false); err != nil {
		return nil, err
	}
	projects, err := s.repo.ListProjects(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, ErrNoProjects
	}
	for _, p := range projects {
		fees, err := s.repo.ListFees(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if len(fees) == 0 {
			return nil, ErrProjectWithoutFees
		}
	}
	finalized, err := s.repo.Finalize(ctx, id, StateValidated)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, finalized.InvoiceeID)
	s.record(ctx, actorID, "invoice.validate", id)
	return finalized, nil
}

// MarkPaid transitions a fully covered validated invoice to Paid.
func (s *Service) MarkPaid(ctx context.Context, actorID, id int64) (*Invoice, error) {
	inv, err := s.authorizedInvoice(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if inv.State != StateValidated {
		return nil, ErrNotEditable
	}
	if inv.OwedAmount.GreaterThan(inv.PaidAmount) {
		return nil, ErrNotEditable
	}
	finalized, err := s.repo.Finalize(ctx, id, StatePaid)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, finalized.InvoiceeID)
	s.record(ctx, actorID, "invoice.paid", id)
	return finalized, nil
}

// CreateCreditNote mirrors a non-draft invoice into a negative credit note.
// The original's owed amount is zeroed and it is marked Credited; the note
// carries one project with one fee whose rate is the negated pre-VAT total at
// the original's average VAT rate, numbered in the credit-note sequence.
func (s *Service) CreateCreditNote(ctx context.Context, actorID, id int64) (*Invoice, error) {
	inv, err := s.authorizedInvoice(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	if inv.State == StateDraft {
		return nil, ErrDraftCreditNote
	}
	fees, err := s.repo.ListInvoiceFees(ctx, id)
	if err != nil {
		return nil, err
	}
	totals := SumFees(fees)
	now := time.Now()
	facturation := now
	note := &Invoice{
		InvoicerID:      inv.InvoicerID,
		InvoiceeID:      inv.InvoiceeID,
		BankAccountID:   inv.BankAccountID,
		BaseCurrency:    inv.BaseCurrency,
		DueDate:         &now,
		FacturationDate: &facturation,
		PaymentMethod:   MethodCreditNote,
		SalesAccount:    inv.SalesAccount,
		VATAccount:      inv.VATAccount,
		State:           StateCredited,
		PaidAmount:      decimal.Zero,
		OwedAmount:      decimal.Zero,
	}
	project := &Project{Title: "Avoir " + inv.Number(now)}
	fee := &Fee{
		Description: "Annulation " + inv.Number(now),
		RateUnit:    totals.BeforeVAT.Neg(),
		Count:       1,
		VAT:         int(AvgVAT(fees).Round(0).IntPart()),
	}
	created, err := s.repo.InsertCreditNote(ctx, id, note, project, fee)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, created.InvoiceeID)
	s.record(ctx, actorID, "invoice.credit", id)
	return created, nil
}
