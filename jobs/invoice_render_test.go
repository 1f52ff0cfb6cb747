package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MedGhazal/InvoiceGenerator/internal/invoicing"
	"github.com/MedGhazal/InvoiceGenerator/report"
)

type missingInvoicePort struct{}

func (missingInvoicePort) GetInvoiceDetail(ctx context.Context, actorID, id int64) (*invoicing.InvoiceDetail, error) {
	return nil, invoicing.ErrNotFound
}

func TestInvoiceRenderJobFailureWithNilLogger(t *testing.T) {
	svc := report.NewService(missingInvoicePort{}, nil, nil)
	job := NewInvoiceRenderJob(svc, nil, nil, t.TempDir())

	task, err := NewInvoiceRenderTask(InvoiceRenderPayload{InvoiceID: 1, ActorID: 7})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, invoicing.ErrNotFound)
}
