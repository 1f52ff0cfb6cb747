package export

import (
	"context"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
	"github.com/MedGhazal/InvoiceGenerator/internal/shared"
)

// InvoicePort exposes the invoice reads the exporter needs.
type InvoicePort interface {
	GetInvoice(ctx context.Context, id int64) (*invoicing.Invoice, error)
	ListInvoiceFees(ctx context.Context, invoiceID int64) ([]invoicing.Fee, error)
	InvoicerManager(ctx context.Context, invoicerID int64) (int64, error)
}

// PartyPort exposes the party reads the exporter needs.
type PartyPort interface {
	GetInvoicer(ctx context.Context, id int64) (*parties.Invoicer, error)
	GetInvoicee(ctx context.Context, id int64) (*parties.Invoicee, error)
}

// Service assembles ledger exports across invoicing and party data.
type Service struct {
	invoices InvoicePort
	parties  PartyPort
	prefixes Prefixes
}

// NewService builds a Service instance.
func NewService(invoices InvoicePort, partyRepo PartyPort, prefixes Prefixes) *Service {
	return &Service{invoices: invoices, parties: partyRepo, prefixes: prefixes}
}

// Rows builds the ledger rows for a batch of invoices. A single draft in the
// batch fails the whole export; partial ledgers are worse than none.
func (s *Service) Rows(ctx context.Context, actorID int64, invoiceIDs []int64) ([]Row, error) {
	var out []Row
	for _, id := range invoiceIDs {
		inv, err := s.invoices.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		manager, err := s.invoices.InvoicerManager(ctx, inv.InvoicerID)
		if err != nil {
			return nil, err
		}
		if manager != actorID {
			return nil, shared.ErrForbidden
		}
		fees, err := s.invoices.ListInvoiceFees(ctx, id)
		if err != nil {
			return nil, err
		}
		invoicer, err := s.parties.GetInvoicer(ctx, inv.InvoicerID)
		if err != nil {
			return nil, err
		}
		invoicee, err := s.parties.GetInvoicee(ctx, inv.InvoiceeID)
		if err != nil {
			return nil, err
		}
		rows, err := s.prefixes.BuildRows(*inv, fees, *invoicer, *invoicee)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}
