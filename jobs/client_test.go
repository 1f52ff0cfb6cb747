package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClientEnqueueInvoiceRender(t *testing.T) {
	client := newTestClient(t)

	info, err := client.EnqueueInvoiceRender(context.Background(), InvoiceRenderPayload{InvoiceID: 42, ActorID: 7})
	require.NoError(t, err)
	require.Equal(t, TaskInvoiceRender, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
}

func TestClientEnqueuePaymentReminderWithOptions(t *testing.T) {
	client := newTestClient(t)

	info, err := client.EnqueuePaymentReminder(context.Background(), PaymentReminderPayload{}, asynq.MaxRetry(3))
	require.NoError(t, err)
	require.Equal(t, TaskPaymentReminder, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
	require.Equal(t, 3, info.MaxRetry)
}

func TestClientEnqueueBalanceRefresh(t *testing.T) {
	client := newTestClient(t)

	info, err := client.EnqueueBalanceRefresh(context.Background(), BalanceRefreshPayload{SinceHours: 24})
	require.NoError(t, err)
	require.Equal(t, TaskBalanceRefresh, info.Type)
	require.Equal(t, QueueDefault, info.Queue)
}
