package domain

import "time"

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	}
	return false
}

// Step is the pipeline stage a job is currently in.
type Step string

const (
	StepStart   Step = "start"
	StepExtract Step = "extract"
	StepChunk   Step = "chunk"
	StepEmbed   Step = "embed"
	StepIndex   Step = "index"
	StepDone    Step = "done"
	StepError   Step = "error"
)

var stepProgress = map[Step]int{
	StepStart:   1,
	StepExtract: 10,
	StepChunk:   40,
	StepEmbed:   70,
	StepIndex:   90,
	StepDone:    100,
}

// Progress returns the progress percentage recorded when a job enters the step.
// StepError has no progress of its own; the job keeps whatever it had reached.
func (s Step) Progress() (int, bool) {
	p, ok := stepProgress[s]
	return p, ok
}

// Valid reports whether s is one of the known steps.
func (s Step) Valid() bool {
	if s == StepError {
		return true
	}
	_, ok := stepProgress[s]
	return ok
}

// Job is one unit of ingestion work.
type Job struct {
	ID               string     `db:"id"`
	DocumentID       string     `db:"document_id"`
	Status           JobStatus  `db:"status"`
	Step             Step       `db:"current_step"`
	Progress         int        `db:"progress_pct"`
	ErrorMessage     *string    `db:"error_message"`
	Attempts         int        `db:"attempts"`
	RetriesExhausted bool       `db:"retries_exhausted"`
	QueuedAt         *time.Time `db:"queued_at"`
	StartedAt        *time.Time `db:"started_at"`
	FinishedAt       *time.Time `db:"finished_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// IsTerminal reports whether the job can no longer change.
// A failed job stays open for a retry until its retries are exhausted.
func (j *Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusSucceeded, JobStatusCanceled:
		return true
	case JobStatusFailed:
		return j.RetriesExhausted
	}
	return false
}

// CanMoveTo reports whether the job may transition to the given status.
func (j *Job) CanMoveTo(to JobStatus) bool {
	if j.IsTerminal() {
		return false
	}
	return CanTransition(j.Status, to)
}

// NewJob returns a queued job for the given document.
func NewJob(id, documentID string, now time.Time) *Job {
	return &Job{
		ID:         id,
		DocumentID: documentID,
		Status:     JobStatusQueued,
		Step:       StepStart,
		Progress:   0,
		QueuedAt:   &now,
		UpdatedAt:  now,
	}
}
