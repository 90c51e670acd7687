package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/book-ingest/internal/domain"
	"github.com/cuongbtq/book-ingest/internal/pipeline"
)

var (
	ErrBrokerRequired   = errors.New("worker: broker is required")
	ErrRunnerRequired   = errors.New("worker: runner is required")
	ErrJobStoreRequired = errors.New("worker: job store is required")
)

// Runner executes one job. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, msg domain.Message) pipeline.Result
}

// JobStore is the part of the job store the worker needs to close out a job
// whose attempts are used up.
type JobStore interface {
	Get(ctx context.Context, id string) (*domain.Job, error)
	Start(ctx context.Context, id string) (*domain.Job, error)
	Fail(ctx context.Context, id string, msg string, permanent bool) error
	MarkExhausted(ctx context.Context, id string) error
}

// Broker is the part of the queue client the worker consumes from.
// *rabbitmq.Client satisfies it.
type Broker interface {
	SetPrefetch(count int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
	PublishDelayed(ctx context.Context, stage int, body []byte, headers amqp.Table) error
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Broker        Broker
	Runner        Runner
	Jobs          JobStore
	WorkerID      string
	QueueName     string
	Concurrency   int
	PrefetchCount int
	JobTimeout    time.Duration
	Retry         RetryPolicy
}

// Worker consumes job messages and runs them on a fixed goroutine pool.
type Worker struct {
	logger            *slog.Logger
	broker            Broker
	runner            Runner
	jobs              JobStore
	workerID          string
	rabbitMQQueueName string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	retry             RetryPolicy
	jobsChan          chan *jobMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
	stopOnce          sync.Once
}

// jobMessage is a validated delivery on its way to a pool goroutine.
type jobMessage struct {
	delivery amqp.Delivery
	msg      domain.Message
	attempt  int
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	switch {
	case cfg.Broker == nil:
		return nil, ErrBrokerRequired
	case cfg.Runner == nil:
		return nil, ErrRunnerRequired
	case cfg.Jobs == nil:
		return nil, ErrJobStoreRequired
	}

	w := &Worker{
		logger:            cfg.Logger,
		broker:            cfg.Broker,
		runner:            cfg.Runner,
		jobs:              cfg.Jobs,
		workerID:          cfg.WorkerID,
		rabbitMQQueueName: cfg.QueueName,
		concurrency:       cfg.Concurrency,
		prefetchCount:     cfg.PrefetchCount,
		jobTimeout:        cfg.JobTimeout,
		retry:             cfg.Retry.WithDefaults(),
		jobsChan:          make(chan *jobMessage),
		stopChan:          make(chan struct{}),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.workerID == "" {
		w.workerID = "worker-" + uuid.NewString()[:8]
	}
	if w.concurrency <= 0 {
		w.concurrency = 1
	}
	if w.prefetchCount <= 0 {
		w.prefetchCount = w.concurrency
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = 30 * time.Minute
	}

	return w, nil
}

// Start consumes until ctx is canceled or the delivery channel closes.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
		slog.Int("max_attempts", w.retry.MaxAttempts),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to set up consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)
	w.startMessageDispatcher(ctx, deliveries)

	w.logger.Info("Worker dispatcher returned", slog.String("worker_id", w.workerID))
	return nil
}

// Stop signals the pool and waits for in-flight jobs to settle.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
