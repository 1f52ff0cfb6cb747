package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceRender renders one invoice to PDF and stores the file.
	TaskInvoiceRender = "invoice:render"
	// TaskPaymentReminder scans for overdue invoices and issues reminders.
	TaskPaymentReminder = "payment:reminder"
	// TaskBalanceRefresh drops cached balances for recently touched clients.
	TaskBalanceRefresh = "balance:refresh"
)

// InvoiceRenderPayload identifies the invoice to render and who asked for it.
type InvoiceRenderPayload struct {
	InvoiceID int64 `json:"invoiceId"`
	ActorID   int64 `json:"actorId"`
}

// NewInvoiceRenderTask constructs an Asynq task.
func NewInvoiceRenderTask(payload InvoiceRenderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceRender, data), nil
}

// PaymentReminderPayload bounds the reminder scan.
type PaymentReminderPayload struct {
	// GraceDays skips invoices overdue by fewer days than this.
	GraceDays int `json:"graceDays"`
}

// NewPaymentReminderTask constructs an Asynq task.
func NewPaymentReminderTask(payload PaymentReminderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentReminder, data), nil
}

// BalanceRefreshPayload bounds the cache invalidation window.
type BalanceRefreshPayload struct {
	// SinceHours limits invalidation to clients with invoice activity in the
	// trailing window.
	SinceHours int `json:"sinceHours"`
}

// NewBalanceRefreshTask constructs an Asynq task.
func NewBalanceRefreshTask(payload BalanceRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceRefresh, data), nil
}
