package rabbitmq

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(cfg *Config) *Client {
	return &Client{config: cfg, logger: slog.New(slog.DiscardHandler)}
}

func TestClient_QueueNames(t *testing.T) {
	c := newTestClient(&Config{
		QueueName:   "ingest_queue",
		RetryDelays: []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second},
	})

	assert.Equal(t, "ingest_queue.retry.1", c.DelayQueueName(1))
	assert.Equal(t, "ingest_queue.retry.3", c.DelayQueueName(3))
	assert.Equal(t, "ingest_queue.dead", c.DeadQueueName())
	assert.Equal(t, 3, c.RetryStages())
}

func TestClient_RequiresConnection(t *testing.T) {
	c := newTestClient(&Config{QueueName: "ingest_queue", RetryDelays: []time.Duration{time.Second}})
	ctx := context.Background()

	assert.False(t, c.IsConnected())
	require.Error(t, c.HealthCheck(ctx))
	require.Error(t, c.SetPrefetch(4))
	require.Error(t, c.PublishDelayed(ctx, 1, []byte(`{}`), nil))
	require.Error(t, c.PublishWithRetry(ctx, []byte(`{}`), "application/json"))

	_, err := c.Consume("worker-1")
	require.Error(t, err)
}
