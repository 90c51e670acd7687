package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// Publisher sends a body to the work exchange. *rabbitmq.Client satisfies it.
type Publisher interface {
	PublishWithRetry(ctx context.Context, body []byte, contentType string) error
}

// Producer enqueues job messages for workers.
type Producer struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewProducer creates a producer.
func NewProducer(publisher Publisher, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{publisher: publisher, logger: logger}
}

// Enqueue publishes the message for an existing queued job. A nil filename
// makes it a metadata-only job. Messages a consumer would reject are never sent.
func (p *Producer) Enqueue(ctx context.Context, jobID string, filename *string, meta *domain.Meta) error {
	body, err := json.Marshal(domain.Message{JobID: jobID, Filename: filename, Meta: meta})
	if err != nil {
		return fmt.Errorf("failed to encode job message: %w", err)
	}
	if _, err := DecodeMessage(body); err != nil {
		return err
	}

	if err := p.publisher.PublishWithRetry(ctx, body, "application/json"); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", jobID, err)
	}

	p.logger.Info("Job enqueued",
		slog.String("job_id", jobID),
		slog.Bool("file_backed", filename != nil),
	)
	return nil
}
