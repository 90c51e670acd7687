package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/book-ingest/internal/domain"
	"github.com/cuongbtq/book-ingest/internal/pipeline"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-w.stopChan:
			logger.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case msg := <-w.jobsChan:
			logger := logger.With(
				slog.String("job_id", msg.msg.JobID),
				slog.Int("attempt", msg.attempt),
			)

			err := w.processJob(ctx, msg, logger)

			// ACK or NACK based on processing result
			if err != nil {
				requeue := shouldRequeueJob(err)
				logger.Error("Job delivery not settled",
					slog.String("error", err.Error()),
					slog.Bool("requeue", requeue),
				)
				if nackErr := msg.delivery.Nack(false, requeue); nackErr != nil {
					logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
				}
				continue
			}

			if ackErr := msg.delivery.Ack(false); ackErr != nil {
				logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
			}
		}
	}
}

// processJob runs the pipeline and applies the retry policy to its outcome.
// A nil error means the delivery is done and must be acked.
func (w *Worker) processJob(ctx context.Context, msg *jobMessage, logger *slog.Logger) error {
	// Parked after a failed close-out; only the close-out is left to do
	if msg.attempt > w.retry.MaxAttempts {
		return w.giveUp(ctx, msg, domain.ErrMaxRetriesExceeded.Error(), logger)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result := w.runner.Run(jobCtx, msg.msg)

	logger.Info("Pipeline returned",
		slog.String("outcome", string(result.Outcome)),
		slog.String("reason", result.Reason),
	)

	// A shutdown interrupted the run; put it back without spending an attempt
	if result.Outcome == pipeline.OutcomeRetryable && ctx.Err() != nil {
		return domain.NewRetryableError(fmt.Errorf("worker shutting down: %w", ctx.Err()))
	}

	decision := w.retry.Decide(result.Outcome, msg.attempt)
	switch decision.Action {
	case ActionRetry:
		headers := amqp.Table{attemptHeader: int32(decision.NextAttempt)}
		if err := w.broker.PublishDelayed(context.WithoutCancel(ctx), msg.attempt, msg.delivery.Body, headers); err != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to schedule retry: %w", err))
		}
		logger.Info("Job scheduled for retry",
			slog.Duration("delay", decision.Delay),
			slog.Int("next_attempt", decision.NextAttempt),
		)

	case ActionExhaust:
		return w.giveUp(ctx, msg, result.Reason, logger)
	}

	return nil
}

// giveUp closes out a job whose attempts are spent. When the store cannot
// record it, the message is parked one stage past the budget so the next
// delivery retries the close-out without running the pipeline again.
func (w *Worker) giveUp(ctx context.Context, msg *jobMessage, reason string, logger *slog.Logger) error {
	err := w.exhaust(context.WithoutCancel(ctx), msg.msg.JobID, reason)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrJobTerminal),
		errors.Is(err, domain.ErrInvalidTransition):
		logger.Warn("Job could not be marked exhausted", slog.Any("error", err))
	default:
		logger.Error("Failed to mark job exhausted", slog.Any("error", err))
		stage := w.retry.MaxAttempts - 1
		if stage < 1 {
			return domain.NewRetryableError(fmt.Errorf("failed to mark job exhausted: %w", err))
		}
		headers := amqp.Table{attemptHeader: int32(w.retry.MaxAttempts + 1)}
		if pubErr := w.broker.PublishDelayed(context.WithoutCancel(ctx), stage, msg.delivery.Body, headers); pubErr != nil {
			return domain.NewRetryableError(fmt.Errorf("failed to mark job exhausted: %w", errors.Join(err, pubErr)))
		}
		return nil
	}

	logger.Warn("Job gave up",
		slog.Any("error", fmt.Errorf("%w: %s", domain.ErrMaxRetriesExceeded, reason)),
		slog.Int("max_attempts", w.retry.MaxAttempts),
	)
	return nil
}

// exhaust leaves the job failed and exhausted whatever state the last
// attempt stranded it in. A queued job is started first so it only moves
// along the transition table.
func (w *Worker) exhaust(ctx context.Context, jobID, reason string) error {
	job, err := w.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = domain.ErrMaxRetriesExceeded.Error()
	}

	if job.Status == domain.JobStatusQueued {
		if job, err = w.jobs.Start(ctx, jobID); err != nil {
			return err
		}
	}
	if job.Status == domain.JobStatusProcessing {
		return w.jobs.Fail(ctx, jobID, reason, true)
	}
	return w.jobs.MarkExhausted(ctx, jobID)
}

// shouldRequeueJob determines if a delivery should be requeued based on the error type
func shouldRequeueJob(err error) bool {
	if errors.Is(err, domain.ErrInvalidMessage) {
		return false
	}
	return domain.IsRetryable(err)
}
