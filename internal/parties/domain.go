package parties

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Country codes of the supported jurisdictions.
const (
	CountryMorocco = "MAR"
	CountryFrance  = "FR"
)

// Invoicer is a billing company profile. Each invoicer belongs to exactly one
// manager account; every owned entity is reachable only through that manager.
type Invoicer struct {
	ID                  int64
	ManagerID           int64
	Name                string
	Address             string
	Country             string
	Phone               string
	LogoPath            string
	BookKeepingCurrency string
	Legal               *LegalInfo
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LegalInfo carries the registration identifiers printed on documents.
// ICE doubles as SIRET for French invoicers.
type LegalInfo struct {
	ICE     string
	RC      string
	Patente string
	CNSS    string
	Fiscal  string
}

// BankAccount is one of an invoicer's payout accounts. RIB is used on
// domestic documents, IBAN and BIC on foreign ones.
type BankAccount struct {
	ID        int64
	OwnerID   int64
	BankName  string
	BIC       string
	RIB       string
	IBAN      string
	CreatedAt time.Time
}

// Invoicee is a billed client, owned by one invoicer. Persons identify with a
// CIN, companies with an ICE.
type Invoicee struct {
	ID                int64
	InvoicerID        int64
	IsPerson          bool
	CIN               string
	ICE               string
	Name              string
	Address           string
	Country           string
	BookKeepingNumber int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Balance aggregates one invoicee's invoices in a single currency.
type Balance struct {
	Currency    string
	Owed        decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
}

var (
	phoneRe = regexp.MustCompile(`^(0|\+\d{1,4})\d{9,15}$`)
	bicRe   = regexp.MustCompile(`^[A-Z]{6}[A-Z0-9]{2}([A-Z0-9]{3})?$`)
	ibanRe  = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]*$`)
	iceRe   = regexp.MustCompile(`^\d{14,16}$`)
	rcRe    = regexp.MustCompile(`^\d{5,6}$`)
	patRe   = regexp.MustCompile(`^\d{8,9}$`)
	cnssRe  = regexp.MustCompile(`^\d{7}$`)
	fiscRe  = regexp.MustCompile(`^\d{6,8}$`)
)

// Validate checks the invoicer profile fields.
func (i Invoicer) Validate() error {
	if i.Name == "" || len(i.Name) > 30 {
		return ErrInvalidName
	}
	if len(i.Address) > 70 {
		return ErrInvalidAddress
	}
	if i.Country != CountryMorocco && i.Country != CountryFrance {
		return ErrInvalidCountry
	}
	if i.Phone != "" && !phoneRe.MatchString(i.Phone) {
		return ErrInvalidPhone
	}
	if i.Legal != nil {
		return i.Legal.Validate()
	}
	return nil
}

// Validate checks the legal identifiers against the registry formats.
func (l LegalInfo) Validate() error {
	if l.ICE != "" && !iceRe.MatchString(l.ICE) {
		return ErrInvalidICE
	}
	if l.RC != "" && !rcRe.MatchString(l.RC) {
		return ErrInvalidLegalInfo
	}
	if l.Patente != "" && !patRe.MatchString(l.Patente) {
		return ErrInvalidLegalInfo
	}
	if l.CNSS != "" && !cnssRe.MatchString(l.CNSS) {
		return ErrInvalidLegalInfo
	}
	if l.Fiscal != "" && !fiscRe.MatchString(l.Fiscal) {
		return ErrInvalidLegalInfo
	}
	return nil
}

// Validate checks the bank account identifiers. RIB is a fixed 24 digits,
// IBAN 26 characters starting with a country code.
func (b BankAccount) Validate() error {
	if b.BIC != "" && !bicRe.MatchString(b.BIC) {
		return ErrInvalidBIC
	}
	if b.RIB != "" && len(b.RIB) != 24 {
		return ErrInvalidRIB
	}
	if b.IBAN != "" && (len(b.IBAN) != 26 || !ibanRe.MatchString(b.IBAN)) {
		return ErrInvalidIBAN
	}
	return nil
}

// Validate checks the invoicee profile. Company clients need a valid ICE, and
// the address must contain a comma separating street from city.
func (c Invoicee) Validate() error {
	if c.Name == "" || len(c.Name) > 30 {
		return ErrInvalidName
	}
	if c.Country != CountryMorocco && c.Country != CountryFrance {
		return ErrInvalidCountry
	}
	if !strings.Contains(c.Address, ",") || len(c.Address) > 100 {
		return ErrInvalidAddress
	}
	if !c.IsPerson && c.ICE != "" && !iceRe.MatchString(c.ICE) {
		return ErrInvalidICE
	}
	if c.BookKeepingNumber < 0 || c.BookKeepingNumber > 99999 {
		return ErrInvalidBookKeepingNumber
	}
	return nil
}

// Designation returns the identifier label shown on documents.
func (c Invoicee) Designation() string {
	if c.IsPerson {
		return "CIN"
	}
	if c.Country == CountryFrance {
		return "SIRET"
	}
	return "ICE"
}

// DesignationValue returns the identifier matching Designation.
func (c Invoicee) DesignationValue() string {
	if c.IsPerson {
		return c.CIN
	}
	return c.ICE
}
