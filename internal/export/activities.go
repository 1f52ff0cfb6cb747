package export

import (
	"github.com/shopspring/decimal"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/money"
)

// ActivityLine is one rendered fee line of an invoice document.
type ActivityLine struct {
	Description string
	VAT         int
	Count       int
	RateUnit    string
	TotalHT     string
}

// ActivityBlock is one project section with its own totals.
type ActivityBlock struct {
	Title    string
	Lines    []ActivityLine
	TotalHT  string
	TotalVAT string
	TotalTTC string
}

// Activities is the rendered body of an invoice document. Kind flips to
// "Avoir" when the pre-VAT total is negative.
type Activities struct {
	Blocks   []ActivityBlock
	Kind     string
	Currency string
}

// DocumentKind labels.
const (
	KindInvoice    = "Facture"
	KindCreditNote = "Avoir"
)

// RenderActivities builds the document body from the invoice's projects.
// Every project must carry at least one fee; empty invoices are rejected the
// same way validation rejects them.
func RenderActivities(inv invoicing.Invoice, projects []invoicing.ProjectDetail) (*Activities, error) {
	if len(projects) == 0 {
		return nil, invoicing.ErrNoProjects
	}
	out := &Activities{Currency: money.Symbol(inv.BaseCurrency)}
	total := decimal.Zero
	for _, pd := range projects {
		if len(pd.Fees) == 0 {
			return nil, invoicing.ErrProjectWithoutFees
		}
		block := ActivityBlock{
			Title:    pd.Project.Title,
			TotalHT:  money.FormatAmount(pd.Totals.BeforeVAT),
			TotalVAT: money.FormatAmount(pd.Totals.VAT),
			TotalTTC: money.FormatAmount(pd.Totals.AfterVAT),
		}
		for _, f := range pd.Fees {
			block.Lines = append(block.Lines, ActivityLine{
				Description: f.Description,
				VAT:         f.VAT,
				Count:       f.Count,
				RateUnit:    money.FormatAmount(f.RateUnit),
				TotalHT:     money.FormatAmount(f.TotalBeforeVAT()),
			})
		}
		total = total.Add(pd.Totals.BeforeVAT)
		out.Blocks = append(out.Blocks, block)
	}
	out.Kind = KindInvoice
	if total.Sign() < 0 {
		out.Kind = KindCreditNote
	}
	return out, nil
}
