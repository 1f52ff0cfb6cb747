package invoicing

import "time"

// PaymentStatus is the derived standing of an invoice, computed on read.
type PaymentStatus int

const (
	// StatusPreliminary covers drafts and estimates.
	StatusPreliminary PaymentStatus = iota
	// StatusOpen is finalized, unpaid and not yet due.
	StatusOpen
	// StatusSettled is fully covered by payments.
	StatusSettled
	// StatusOverdue is finalized, unpaid and past its due date.
	StatusOverdue
)

// OverdueBand refines StatusOverdue for display.
type OverdueBand int

const (
	BandNone OverdueBand = iota
	// BandDueNow covers invoices due today or yesterday.
	BandDueNow
	// BandRecent covers invoices overdue by thirty days or fewer.
	BandRecent
	// BandLong covers anything older.
	BandLong
)

// Status derives the payment standing of the invoice as of the given day.
// Settlement wins over overdue: a paid invoice past its due date is settled.
func (i Invoice) Status(today time.Time) PaymentStatus {
	if i.State == StateDraft || i.State == StateEstimate {
		return StatusPreliminary
	}
	if i.OwedAmount.LessThanOrEqual(i.PaidAmount) {
		return StatusSettled
	}
	if i.DueDate != nil && !i.DueDate.After(truncateDay(today)) {
		return StatusOverdue
	}
	return StatusOpen
}

// Band classifies how far past due the invoice is; BandNone unless overdue.
func (i Invoice) Band(today time.Time) OverdueBand {
	if i.Status(today) != StatusOverdue {
		return BandNone
	}
	days := int(truncateDay(today).Sub(truncateDay(*i.DueDate)).Hours() / 24)
	switch {
	case days <= 1:
		return BandDueNow
	case days <= 30:
		return BandRecent
	default:
		return BandLong
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
