package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/book-ingest/internal/domain"
	"github.com/cuongbtq/book-ingest/internal/storage"
)

// Enqueuer publishes a job message. *worker.Producer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string, filename *string, meta *domain.Meta) error
}

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Jobs      storage.JobStore
	Documents storage.DocumentStore
	Producer  Enqueuer
	// Catalogs back the title backfill endpoint.
	Catalogs storage.Catalogs
	// Checks back the /ready endpoint, keyed by backend name.
	Checks map[string]HealthCheck
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	jobs      storage.JobStore
	documents storage.DocumentStore
	producer  Enqueuer
	catalogs  storage.Catalogs
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		logger:    logger,
		jobs:      deps.Jobs,
		documents: deps.Documents,
		producer:  deps.Producer,
		catalogs:  deps.Catalogs,
	}
}
