package dto

import (
	"time"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// FromJob renders a job for the API.
func FromJob(job *domain.Job) JobDTO {
	return JobDTO{
		ID:         job.ID,
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Step:       string(job.Step),
		Progress:   job.Progress,
		Error:      job.ErrorMessage,
		QueuedAt:   formatTime(job.QueuedAt),
		StartedAt:  formatTime(job.StartedAt),
		FinishedAt: formatTime(job.FinishedAt),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
