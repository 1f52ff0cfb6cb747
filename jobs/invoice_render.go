package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/MedGhazal/InvoiceGenerator/internal/jobs"
	"github.com/MedGhazal/InvoiceGenerator/report"
)

// InvoiceRenderJob renders finalized invoices to PDF in the background and
// stores the file for later download.
type InvoiceRenderJob struct {
	Reports *report.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	OutDir  string
}

// NewInvoiceRenderJob wires dependencies for the render handler.
func NewInvoiceRenderJob(reports *report.Service, logger *slog.Logger, metrics *jobmetrics.Metrics, outDir string) *InvoiceRenderJob {
	return &InvoiceRenderJob{Reports: reports, Logger: logger, Metrics: metrics, OutDir: outDir}
}

// Handle processes invoice render tasks.
func (j *InvoiceRenderJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("invoice render: handler not configured")
	}
	var payload InvoiceRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskInvoiceRender)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	pdf, name, err := j.Reports.RenderInvoice(ctx, payload.ActorID, payload.InvoiceID)
	if err != nil {
		resultErr = err
		if j.Logger != nil {
			j.Logger.Error("render invoice",
				slog.Int64("invoice", payload.InvoiceID),
				slog.Any("error", err))
		}
		return err
	}
	path := filepath.Join(j.OutDir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		resultErr = err
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("rendered invoice",
			slog.Int64("invoice", payload.InvoiceID),
			slog.String("file", path))
	}
	return nil
}

func (j *InvoiceRenderJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
