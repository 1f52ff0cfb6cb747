package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/MedGhazal/InvoiceGenerator/internal/jobs"
)

// BalanceInvalidator drops cached balances for one client.
type BalanceInvalidator interface {
	InvalidateBalances(ctx context.Context, invoiceeID int64)
}

// TouchedInvoiceeLister finds clients whose invoices changed in a window.
type TouchedInvoiceeLister interface {
	RecentlyTouchedInvoicees(ctx context.Context, since time.Time) ([]int64, error)
}

// PGTouchedLister implements TouchedInvoiceeLister against the invoices table.
type PGTouchedLister struct {
	Pool *pgxpool.Pool
}

// RecentlyTouchedInvoicees lists distinct clients with invoice activity since
// the cutoff.
func (l PGTouchedLister) RecentlyTouchedInvoicees(ctx context.Context, since time.Time) ([]int64, error) {
	rows, err := l.Pool.Query(ctx, `
		SELECT DISTINCT invoicee_id FROM invoices WHERE updated_at >= $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BalanceRefreshJob drops cached balance windows for clients whose invoices
// changed recently, so the next read recomputes from the ledger.
type BalanceRefreshJob struct {
	Lister  TouchedInvoiceeLister
	Parties BalanceInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewBalanceRefreshJob wires dependencies for the refresh handler.
func NewBalanceRefreshJob(lister TouchedInvoiceeLister, invalidator BalanceInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceRefreshJob {
	return &BalanceRefreshJob{
		Lister:  lister,
		Parties: invalidator,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes balance refresh tasks.
func (j *BalanceRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Lister == nil || j.Parties == nil {
		return errors.New("balance refresh: handler not configured")
	}
	var payload BalanceRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.SinceHours <= 0 {
		payload.SinceHours = 24
	}

	tracker := j.metrics().Track(TaskBalanceRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	since := j.clock().Add(-time.Duration(payload.SinceHours) * time.Hour)
	ids, err := j.Lister.RecentlyTouchedInvoicees(ctx, since)
	if err != nil {
		resultErr = err
		return err
	}

	for _, id := range ids {
		j.Parties.InvalidateBalances(ctx, id)
	}
	if j.Logger != nil {
		j.Logger.Info("balance cache refresh", slog.Int("clients", len(ids)))
	}
	return nil
}

func (j *BalanceRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
