// Package storage persists ingestion jobs, documents and catalog flags.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// JobStore is the durable home of job state. Every write is a conditional
// update checked against the transition table, so a stale or duplicate
// worker can never move a job backwards.
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, filter JobFilter) ([]domain.Job, error)

	// Start moves the job to processing and counts an attempt.
	Start(ctx context.Context, id string) (*domain.Job, error)
	// Advance records entry into a step. Progress never decreases.
	Advance(ctx context.Context, id string, step domain.Step) error
	Succeed(ctx context.Context, id string) error
	// Fail records the error. A permanent failure also exhausts the job.
	Fail(ctx context.Context, id string, msg string, permanent bool) error
	// MarkExhausted closes a failed job once its retry budget is spent.
	MarkExhausted(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) (*domain.Job, error)
}

// DocumentStore holds file-backed ingestion targets.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	// SetDocumentIndexed flips is_indexed to true and reports whether it
	// was false before.
	SetDocumentIndexed(ctx context.Context, id string) (bool, error)
}

// Catalog is an external book catalog whose index flags the pipeline owns.
// The setters are check-then-set: they report whether a flip happened.
type Catalog interface {
	Name() string
	FindByBookID(ctx context.Context, bookID string) (*domain.CatalogRecord, error)
	SetIndexed(ctx context.Context, bookID string) (bool, error)
	SetFileIndexed(ctx context.Context, bookID string) (bool, error)
	// ListUnindexed returns up to limit titled records whose is_indexed
	// flag is still false, ordered by book id.
	ListUnindexed(ctx context.Context, limit int) ([]domain.CatalogRecord, error)
}

// Catalogs maps a message's source_data to the catalog it names.
type Catalogs map[string]Catalog

// NewCatalogs indexes catalogs by name.
func NewCatalogs(catalogs ...Catalog) Catalogs {
	out := make(Catalogs, len(catalogs))
	for _, c := range catalogs {
		out[c.Name()] = c
	}
	return out
}

// Lookup returns the catalog registered under source.
func (c Catalogs) Lookup(source string) (Catalog, error) {
	catalog, ok := c[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCatalog, source)
	}
	return catalog, nil
}

// JobFilter narrows a job listing. Results are ordered newest first.
type JobFilter struct {
	Status     domain.JobStatus
	DocumentID string
	PageSize   int
	Cursor     *JobCursor
}

// JobCursor is the keyset position after the last job of a page.
type JobCursor struct {
	QueuedAt time.Time
	JobID    string
}
