package export

import "errors"

var (
	// ErrDraftExport rejects exporting or rendering unfinalized invoices.
	ErrDraftExport = errors.New("export: draft invoices cannot be exported")
	// ErrIncompleteInvoice rejects finalized invoices missing number or dates.
	ErrIncompleteInvoice = errors.New("export: invoice lacks number or dates")
)
