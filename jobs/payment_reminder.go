package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	jobmetrics "github.com/MedGhazal/InvoiceGenerator/internal/jobs"
	"github.com/MedGhazal/InvoiceGenerator/internal/platform/db"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PaymentReminderJob scans for overdue invoices and records reminders per
// overdue band. The scan only looks at validated invoices that still owe
// money; settled and credited ones never remind.
type PaymentReminderJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewPaymentReminderJob wires dependencies for the reminder handler.
func NewPaymentReminderJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *PaymentReminderJob {
	return &PaymentReminderJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes payment reminder tasks.
func (j *PaymentReminderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("payment reminder: handler not configured")
	}
	var payload PaymentReminderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.GraceDays < 0 {
		payload.GraceDays = 0
	}

	tracker := j.metrics().Track(TaskPaymentReminder)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	today := j.clock()
	cutoff := today.AddDate(0, 0, -payload.GraceDays)
	rows, err := j.Pool.Query(ctx, `
		SELECT i.id, i.due_date, i.owed_amount, i.paid_amount
		FROM invoices i
		WHERE i.state = $1
		  AND i.due_date IS NOT NULL
		  AND i.due_date <= $2
		  AND i.owed_amount > i.paid_amount
		ORDER BY i.due_date`, int(invoicing.StateValidated), cutoff)
	if err != nil {
		resultErr = err
		return err
	}
	defer rows.Close()

	counts := map[invoicing.OverdueBand]int{}
	for rows.Next() {
		var (
			inv        invoicing.Invoice
			owed, paid pgtype.Numeric
		)
		inv.State = invoicing.StateValidated
		if err := rows.Scan(&inv.ID, &inv.DueDate, &owed, &paid); err != nil {
			resultErr = err
			return err
		}
		inv.OwedAmount = db.NumericToDecimal(owed)
		inv.PaidAmount = db.NumericToDecimal(paid)
		counts[inv.Band(today)]++
	}
	if err := rows.Err(); err != nil {
		resultErr = err
		return err
	}

	for band, count := range counts {
		j.metrics().AddReminders(bandLabel(band), count)
	}
	if j.Logger != nil {
		j.Logger.Info("payment reminder scan",
			slog.Int("due_now", counts[invoicing.BandDueNow]),
			slog.Int("recent", counts[invoicing.BandRecent]),
			slog.Int("long", counts[invoicing.BandLong]))
	}
	return nil
}

func bandLabel(band invoicing.OverdueBand) string {
	switch band {
	case invoicing.BandDueNow:
		return "due_now"
	case invoicing.BandRecent:
		return "recent"
	case invoicing.BandLong:
		return "long"
	default:
		return "none"
	}
}

func (j *PaymentReminderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
