package payments

import "errors"

var (
	// ErrNotFound indicates a missing payment.
	ErrNotFound = errors.New("payments: not found")
	// ErrNoInvoices rejects a payment that would cover no invoice at all.
	ErrNoInvoices = errors.New("payments: a payment must cover at least one invoice")
	// ErrMixedCurrencies rejects linking invoices billed in different currencies.
	ErrMixedCurrencies = errors.New("payments: linked invoices must share one currency")
	// ErrOverAllocation rejects a payment larger than what the linked invoices still owe.
	ErrOverAllocation = errors.New("payments: amount exceeds outstanding balance of linked invoices")
	// ErrNegativeAmount rejects payments below zero.
	ErrNegativeAmount = errors.New("payments: amount cannot be negative")
	// ErrNotLinkable rejects linking an invoice that was never finalized.
	ErrNotLinkable = errors.New("payments: only validated invoices accept payments")
	// ErrWrongPayor rejects linking an invoice billed to another invoicee.
	ErrWrongPayor = errors.New("payments: invoice is billed to a different invoicee")
	// ErrAlreadyLinked rejects linking the same invoice twice.
	ErrAlreadyLinked = errors.New("payments: invoice already linked to this payment")
	// ErrNotLinked rejects unlinking an invoice the payment does not cover.
	ErrNotLinked = errors.New("payments: invoice is not linked to this payment")
)
