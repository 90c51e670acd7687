package dto

import "github.com/cuongbtq/book-ingest/internal/domain"

// CreateJobRequest asks for one ingestion job. Without a filename the job
// indexes the catalog metadata only and needs a title.
type CreateJobRequest struct {
	Filename *string       `json:"filename"`
	BookID   domain.BookID `json:"id_book"`
	Title    string        `json:"title_book"`
	Author   string        `json:"author"`
	Source   string        `json:"source_data"`
}

type ListJobsRequest struct {
	Status     string `form:"status"`
	DocumentID string `form:"document_id"`
	PageSize   int    `form:"page_size"`
	Cursor     string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

// JobDTO is the job read contract.
type JobDTO struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Status     string  `json:"status"`
	Step       string  `json:"step"`
	Progress   int     `json:"progress"`
	Error      *string `json:"error"`
	QueuedAt   *string `json:"queued_at"`
	StartedAt  *string `json:"started_at"`
	FinishedAt *string `json:"finished_at"`
}

// IndexCatalogRequest bounds one catalog backfill.
type IndexCatalogRequest struct {
	Limit int `form:"limit"`
}

type IndexCatalogResponse struct {
	Source   string   `json:"source"`
	Enqueued int      `json:"enqueued"`
	Jobs     []JobDTO `json:"jobs"`
}
