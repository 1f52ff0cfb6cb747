package invoicing

import "errors"

var (
	// ErrNotFound indicates a missing invoice, project or fee.
	ErrNotFound = errors.New("invoicing: not found")
	// ErrDatesRequired blocks finalizing an invoice without both dates.
	ErrDatesRequired = errors.New("invoicing: due and facturation dates are mandatory")
	// ErrDueBeforeFacturation blocks a due date earlier than the issue date.
	ErrDueBeforeFacturation = errors.New("invoicing: due date precedes facturation date")
	// ErrNoProjects blocks validating an invoice without projects.
	ErrNoProjects = errors.New("invoicing: invoice has no projects")
	// ErrProjectWithoutFees blocks validating while any project is empty.
	ErrProjectWithoutFees = errors.New("invoicing: project has no fees")
	// ErrNotEditable rejects structural changes to finalized invoices.
	ErrNotEditable = errors.New("invoicing: invoice is not editable in its current state")
	// ErrLastFee rejects removing the only fee of a finalized invoice's project.
	ErrLastFee = errors.New("invoicing: cannot remove the last fee of a validated project")
	// ErrLastProject rejects removing the only project of a finalized invoice.
	ErrLastProject = errors.New("invoicing: cannot remove the last project of a validated invoice")
	// ErrDraftCreditNote rejects crediting an invoice that was never issued.
	ErrDraftCreditNote = errors.New("invoicing: draft invoices cannot be credited")
	// ErrAlreadyFinal rejects re-validating a finalized invoice.
	ErrAlreadyFinal = errors.New("invoicing: invoice already finalized")
)
