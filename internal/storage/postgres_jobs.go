package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

const jobColumns = `id, document_id, status, current_step, progress_pct, error_message,
	attempts, retries_exhausted, queued_at, started_at, finished_at, updated_at`

// PostgresJobStore keeps jobs in the ingestion_jobs table.
type PostgresJobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresJobStore creates a job store on db.
func NewPostgresJobStore(db *sqlx.DB, logger *slog.Logger) *PostgresJobStore {
	return &PostgresJobStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresJobStore) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO ingestion_jobs (
			id, document_id, status, current_step, progress_pct,
			attempts, retries_exhausted, queued_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, COALESCE($8, NOW()), NOW()
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.DocumentID,
		job.Status,
		job.Step,
		job.Progress,
		job.Attempts,
		job.RetriesExhausted,
		job.QueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *PostgresJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List returns up to PageSize+1 jobs so callers can tell whether another
// page follows.
func (s *PostgresJobStore) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM ingestion_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.DocumentID != "" {
		query += fmt.Sprintf(" AND document_id = $%d", argIdx)
		args = append(args, filter.DocumentID)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (queued_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.QueuedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY queued_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *PostgresJobStore) Start(ctx context.Context, id string) (*domain.Job, error) {
	progress, _ := domain.StepStart.Progress()
	query := `
		UPDATE ingestion_jobs
		SET status = $2,
		    current_step = $3,
		    progress_pct = GREATEST(progress_pct, $4),
		    attempts = attempts + 1,
		    error_message = NULL,
		    finished_at = NULL,
		    started_at = COALESCE(started_at, NOW()),
		    updated_at = NOW()
		WHERE id = $1
		  AND status = ANY($5)
		  AND NOT retries_exhausted
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		id,
		domain.JobStatusProcessing,
		domain.StepStart,
		progress,
		pq.Array(statusStrings(domain.SourcesFor(domain.JobStatusProcessing))),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explain(ctx, id)
		}
		return nil, fmt.Errorf("failed to start job: %w", err)
	}

	s.logger.Info("Job started",
		slog.String("job_id", id),
		slog.Int("attempt", job.Attempts),
	)

	return &job, nil
}

func (s *PostgresJobStore) Advance(ctx context.Context, id string, step domain.Step) error {
	progress, ok := step.Progress()
	if !ok || step == domain.StepDone {
		return fmt.Errorf("%w: cannot advance to step %q", domain.ErrInvalidTransition, step)
	}

	query := `
		UPDATE ingestion_jobs
		SET current_step = $2,
		    progress_pct = GREATEST(progress_pct, $3),
		    updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	return s.execTransition(ctx, id, "advance", query, id, step, progress, domain.JobStatusProcessing)
}

func (s *PostgresJobStore) Succeed(ctx context.Context, id string) error {
	progress, _ := domain.StepDone.Progress()
	query := `
		UPDATE ingestion_jobs
		SET status = $2,
		    current_step = $3,
		    progress_pct = $4,
		    error_message = NULL,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($5)
	`

	return s.execTransition(ctx, id, "succeed", query,
		id,
		domain.JobStatusSucceeded,
		domain.StepDone,
		progress,
		pq.Array(statusStrings(domain.SourcesFor(domain.JobStatusSucceeded))),
	)
}

func (s *PostgresJobStore) Fail(ctx context.Context, id string, msg string, permanent bool) error {
	query := `
		UPDATE ingestion_jobs
		SET status = $2,
		    current_step = $3,
		    error_message = $4,
		    retries_exhausted = retries_exhausted OR $5,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($6)
	`

	return s.execTransition(ctx, id, "fail", query,
		id,
		domain.JobStatusFailed,
		domain.StepError,
		msg,
		permanent,
		pq.Array(statusStrings(domain.SourcesFor(domain.JobStatusFailed))),
	)
}

func (s *PostgresJobStore) MarkExhausted(ctx context.Context, id string) error {
	query := `
		UPDATE ingestion_jobs
		SET retries_exhausted = TRUE,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2 AND NOT retries_exhausted
	`

	err := s.execTransition(ctx, id, "mark exhausted", query, id, domain.JobStatusFailed)
	if errors.Is(err, domain.ErrJobTerminal) {
		job, getErr := s.Get(ctx, id)
		if getErr == nil && job.Status == domain.JobStatusFailed {
			return nil
		}
	}
	return err
}

func (s *PostgresJobStore) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	query := `
		UPDATE ingestion_jobs
		SET status = $2,
		    finished_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($3) AND NOT retries_exhausted
		RETURNING ` + jobColumns

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query,
		id,
		domain.JobStatusCanceled,
		pq.Array(statusStrings(domain.SourcesFor(domain.JobStatusCanceled))),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explain(ctx, id)
		}
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	s.logger.Info("Job canceled", slog.String("job_id", id))
	return &job, nil
}

func (s *PostgresJobStore) execTransition(ctx context.Context, id, op, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s job: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err := s.explain(ctx, id)
		s.logger.Warn("Job update rejected",
			slog.String("job_id", id),
			slog.String("op", op),
			slog.Any("error", err),
		)
		return err
	}

	return nil
}

// explain turns a conditional update that matched no row into the reason.
func (s *PostgresJobStore) explain(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return rejection(job)
}

func rejection(job *domain.Job) error {
	switch {
	case job.Status == domain.JobStatusCanceled:
		return domain.ErrJobCanceled
	case job.IsTerminal():
		return domain.ErrJobTerminal
	}
	return fmt.Errorf("%w: job is %s", domain.ErrInvalidTransition, job.Status)
}

func statusStrings(statuses []domain.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
