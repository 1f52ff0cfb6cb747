package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
)

// InvoicePort exposes the invoice reads the renderer needs.
type InvoicePort interface {
	GetInvoiceDetail(ctx context.Context, actorID, id int64) (*invoicing.InvoiceDetail, error)
}

// PartyPort exposes the party reads the renderer needs.
type PartyPort interface {
	GetInvoicer(ctx context.Context, id int64) (*parties.Invoicer, error)
	GetInvoicee(ctx context.Context, id int64) (*parties.Invoicee, error)
	GetBankAccount(ctx context.Context, id int64) (*parties.BankAccount, error)
	ListBankAccounts(ctx context.Context, ownerID int64) ([]parties.BankAccount, error)
}

// Renderer converts HTML into the final document bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Service assembles invoice documents and renders them to PDF.
type Service struct {
	invoices InvoicePort
	parties  PartyPort
	renderer Renderer
}

// NewService builds a Service instance.
func NewService(invoices InvoicePort, partyRepo PartyPort, renderer Renderer) *Service {
	return &Service{invoices: invoices, parties: partyRepo, renderer: renderer}
}

// RenderInvoice produces the PDF of one finalized invoice along with a
// download file name. Actor authorization happens inside GetInvoiceDetail.
func (s *Service) RenderInvoice(ctx context.Context, actorID, invoiceID int64) ([]byte, string, error) {
	detail, err := s.invoices.GetInvoiceDetail(ctx, actorID, invoiceID)
	if err != nil {
		return nil, "", err
	}
	invoicer, err := s.parties.GetInvoicer(ctx, detail.Invoice.InvoicerID)
	if err != nil {
		return nil, "", err
	}
	invoicee, err := s.parties.GetInvoicee(ctx, detail.Invoice.InvoiceeID)
	if err != nil {
		return nil, "", err
	}
	account, err := s.bankAccount(ctx, detail.Invoice, invoicer.ID)
	if err != nil {
		return nil, "", err
	}
	doc, err := BuildDocument(*detail, *invoicer, *invoicee, account)
	if err != nil {
		return nil, "", err
	}
	html, err := doc.RenderHTML()
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.renderer.RenderHTML(ctx, html)
	if err != nil {
		return nil, "", fmt.Errorf("render invoice %d: %w", invoiceID, err)
	}
	return pdf, fileName(detail, invoicer), nil
}

// bankAccount picks the account the invoice names, falling back to the
// invoicer's first account. Invoices without any account print no bank block.
func (s *Service) bankAccount(ctx context.Context, inv invoicing.Invoice, invoicerID int64) (*parties.BankAccount, error) {
	if inv.BankAccountID != nil {
		return s.parties.GetBankAccount(ctx, *inv.BankAccountID)
	}
	accounts, err := s.parties.ListBankAccounts(ctx, invoicerID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	return &accounts[0], nil
}

func fileName(detail *invoicing.InvoiceDetail, invoicer *parties.Invoicer) string {
	name := strings.ReplaceAll(invoicer.Name, " ", "")
	number := strings.ReplaceAll(detail.Number, "/", "-")
	return fmt.Sprintf("%s_%s.pdf", name, number)
}
