package parties

import "errors"

var (
	// ErrNotFound indicates a missing invoicer, invoicee or bank account.
	ErrNotFound = errors.New("parties: not found")
	// ErrInvalidName rejects empty or oversized names.
	ErrInvalidName = errors.New("parties: name must be 1 to 30 characters")
	// ErrInvalidAddress rejects malformed addresses. Invoicee addresses need a
	// comma between street and city for document rendering.
	ErrInvalidAddress = errors.New("parties: address is invalid")
	// ErrInvalidCountry rejects countries outside the supported jurisdictions.
	ErrInvalidCountry = errors.New("parties: country must be MAR or FR")
	// ErrInvalidPhone rejects phone numbers outside the accepted format.
	ErrInvalidPhone = errors.New("parties: phone number is invalid")
	// ErrInvalidICE rejects malformed ICE/SIRET identifiers.
	ErrInvalidICE = errors.New("parties: ICE/SIRET must be 14 to 16 digits")
	// ErrInvalidLegalInfo rejects malformed RC, patente, CNSS or IF numbers.
	ErrInvalidLegalInfo = errors.New("parties: legal identifier is invalid")
	// ErrInvalidBIC rejects malformed SWIFT/BIC codes.
	ErrInvalidBIC = errors.New("parties: SWIFT/BIC is invalid")
	// ErrInvalidRIB rejects RIBs that are not exactly 24 digits.
	ErrInvalidRIB = errors.New("parties: RIB must be 24 characters")
	// ErrInvalidIBAN rejects malformed IBANs.
	ErrInvalidIBAN = errors.New("parties: IBAN must be 26 characters starting with a country code")
	// ErrInvalidBookKeepingNumber bounds client account numbers.
	ErrInvalidBookKeepingNumber = errors.New("parties: bookkeeping number must be between 0 and 99999")
	// ErrDuplicateICE rejects a second invoicee with the same ICE.
	ErrDuplicateICE = errors.New("parties: an invoicee with this ICE already exists")
)
