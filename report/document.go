package report

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/MedGhazal/InvoiceGenerator/internal/export"
	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/internal/parties"
)

// methodLabels are the printed names of the payment method codes.
var methodLabels = map[invoicing.PaymentMethod]string{
	invoicing.MethodTransfer:       "Virement bancaire",
	invoicing.MethodCash:           "Espèces",
	invoicing.MethodCheck:          "Chèque",
	invoicing.MethodCreditNote:     "Avoir",
	invoicing.MethodCreditCard:     "Carte de crédit",
	invoicing.MethodDebitCard:      "Carte de débit",
	invoicing.MethodDirectDebit:    "Prélèvement",
	invoicing.MethodBillOfExchange: "Lettre de change",
	invoicing.MethodDivers:         "Divers",
}

// vatNote is printed on invoices billed from Morocco to a foreign client.
const vatNote = "Exonération de la TVA en vertu des dispositions de l'article 92-I-1° du CGI relatives aux exportations de services."

// IdentityBlock carries one party's printable identity.
type IdentityBlock struct {
	Name         string
	AddressLines []string
	Country      string
	// Designation/DesignationValue pair: CIN for Moroccan persons, ICE or
	// SIRET for institutions.
	Designation      string
	DesignationValue string
}

// LegalFooter carries the invoicer's registration numbers.
type LegalFooter struct {
	ICEDesignation string
	ICE            string
	RC             string
	Patente        string
	CNSS           string
	Fiscal         string
	Phone          string
}

// BankBlock carries the payment coordinates printed on the document. Domestic
// invoices print the RIB, foreign ones the IBAN.
type BankBlock struct {
	Bank string
	BIC  string
	RIB  string
	IBAN string
}

// Document is everything the invoice template needs.
type Document struct {
	Kind            string
	Number          string
	FacturationDate string
	DueDate         string
	PaymentMethod   string
	Invoicer        IdentityBlock
	Invoicee        IdentityBlock
	Legal           LegalFooter
	Bank            *BankBlock
	Activities      *export.Activities
	VATNote         string
	LogoPath        string
}

func countryName(code string) string {
	switch code {
	case parties.CountryMorocco:
		return "Maroc"
	case parties.CountryFrance:
		return "France"
	default:
		return ""
	}
}

func addressLines(address string) []string {
	parts := strings.Split(address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func invoiceeIdentity(invoicer parties.Invoicer, invoicee parties.Invoicee) IdentityBlock {
	block := IdentityBlock{
		Name:         invoicee.Name,
		AddressLines: addressLines(invoicee.Address),
		Country:      countryName(invoicee.Country),
	}
	// Moroccan persons are identified by CIN, institutions by ICE or SIRET.
	if invoicee.IsPerson && invoicer.Country == parties.CountryMorocco {
		block.Designation = "CIN"
		block.DesignationValue = invoicee.CIN
	} else {
		block.Designation = institutionDesignation(invoicee.Country)
		block.DesignationValue = invoicee.ICE
	}
	return block
}

func institutionDesignation(country string) string {
	if country == parties.CountryFrance {
		return "SIRET"
	}
	return "ICE"
}

// BuildDocument assembles the printable model of one finalized invoice.
func BuildDocument(detail invoicing.InvoiceDetail, invoicer parties.Invoicer, invoicee parties.Invoicee, account *parties.BankAccount) (*Document, error) {
	if !detail.Invoice.State.Final() {
		return nil, export.ErrDraftExport
	}
	activities, err := export.RenderActivities(detail.Invoice, detail.Projects)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Kind:          activities.Kind,
		Number:        detail.Number,
		PaymentMethod: methodLabels[detail.Invoice.PaymentMethod],
		Invoicer: IdentityBlock{
			Name:         invoicer.Name,
			AddressLines: addressLines(invoicer.Address),
			Country:      countryName(invoicer.Country),
		},
		Invoicee:   invoiceeIdentity(invoicer, invoicee),
		Activities: activities,
		LogoPath:   invoicer.LogoPath,
	}
	if detail.Invoice.FacturationDate != nil {
		doc.FacturationDate = detail.Invoice.FacturationDate.Format("02-01-2006")
	}
	if detail.Invoice.DueDate != nil {
		doc.DueDate = detail.Invoice.DueDate.Format("02-01-2006")
	}
	if invoicer.Legal != nil {
		doc.Legal = LegalFooter{
			ICEDesignation: institutionDesignation(invoicer.Country),
			ICE:            invoicer.Legal.ICE,
			RC:             invoicer.Legal.RC,
			Patente:        invoicer.Legal.Patente,
			CNSS:           invoicer.Legal.CNSS,
			Fiscal:         invoicer.Legal.Fiscal,
			Phone:          invoicer.Phone,
		}
	}
	if account != nil {
		block := &BankBlock{Bank: account.BankName, BIC: account.BIC}
		if detail.Invoice.BaseCurrency == invoicer.BookKeepingCurrency {
			block.RIB = account.RIB
		} else {
			block.IBAN = account.IBAN
		}
		doc.Bank = block
	}
	// Services exported from Morocco are VAT exempt; the note says so.
	if invoicer.Country == parties.CountryMorocco && invoicee.Country != invoicer.Country {
		doc.VATNote = vatNote
	}
	return doc, nil
}

var documentTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Kind}} {{.Number}}</title>
<style>
body { font-family: "Helvetica Neue", Arial, sans-serif; font-size: 12px; color: #1a1a1a; margin: 2.5cm; }
h1 { font-size: 20px; }
table { width: 100%; border-collapse: collapse; margin-top: 1em; }
th, td { border-bottom: 1px solid #ccc; padding: 4px 8px; text-align: left; }
td.amount, th.amount { text-align: right; }
.parties { display: flex; justify-content: space-between; margin-top: 2em; }
.totals td { font-weight: bold; border: none; }
.note { margin-top: 2em; text-align: center; font-style: italic; }
footer { margin-top: 3em; font-size: 10px; text-align: center; color: #555; }
</style>
</head>
<body>
<h1>{{.Kind}} {{.Number}}</h1>
<div class="parties">
<div>
<strong>{{.Invoicer.Name}}</strong><br>
{{range .Invoicer.AddressLines}}{{.}}<br>{{end}}
{{.Invoicer.Country}}
</div>
<div>
<strong>{{.Invoicee.Name}}</strong><br>
{{range .Invoicee.AddressLines}}{{.}}<br>{{end}}
{{.Invoicee.Country}}<br>
{{if .Invoicee.DesignationValue}}<strong>{{.Invoicee.Designation}}</strong>: {{.Invoicee.DesignationValue}}{{end}}
</div>
</div>
<p>Date de facturation: {{.FacturationDate}}<br>
Date d'échéance: {{.DueDate}}<br>
Mode de paiement: {{.PaymentMethod}}</p>
{{range .Activities.Blocks}}
<h3>{{.Title}}</h3>
<table>
<tr><th>Description</th><th class="amount">TVA %</th><th class="amount">Quantité</th><th class="amount">Prix unitaire</th><th class="amount">Total HT</th></tr>
{{range .Lines}}<tr><td>{{.Description}}</td><td class="amount">{{.VAT}}</td><td class="amount">{{.Count}}</td><td class="amount">{{.RateUnit}}</td><td class="amount">{{.TotalHT}}</td></tr>
{{end}}
<tr class="totals"><td colspan="4">Total HT ({{$.Activities.Currency}})</td><td class="amount">{{.TotalHT}}</td></tr>
<tr class="totals"><td colspan="4">TVA ({{$.Activities.Currency}})</td><td class="amount">{{.TotalVAT}}</td></tr>
<tr class="totals"><td colspan="4">Total TTC ({{$.Activities.Currency}})</td><td class="amount">{{.TotalTTC}}</td></tr>
</table>
{{end}}
{{if .Bank}}
<p><strong>Banque</strong>: {{.Bank.Bank}}<br>
<strong>SWIFT/BIC</strong>: {{.Bank.BIC}}<br>
{{if .Bank.RIB}}<strong>RIB</strong>: {{.Bank.RIB}}{{else}}<strong>IBAN</strong>: {{.Bank.IBAN}}{{end}}</p>
{{end}}
{{if .VATNote}}<p class="note">{{.VATNote}}</p>{{end}}
<footer>
{{.Invoicer.Name}} | {{if .Legal.ICE}}{{.Legal.ICEDesignation}}: {{.Legal.ICE}} | {{end}}{{if .Legal.RC}}RC: {{.Legal.RC}} | {{end}}{{if .Legal.Patente}}Patente: {{.Legal.Patente}} | {{end}}{{if .Legal.CNSS}}CNSS: {{.Legal.CNSS}} | {{end}}{{if .Legal.Fiscal}}IF: {{.Legal.Fiscal}} | {{end}}{{.Legal.Phone}}
</footer>
</body>
</html>`))

// RenderHTML produces the HTML body handed to the PDF converter.
func (d *Document) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
