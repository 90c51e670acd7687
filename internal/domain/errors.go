package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrJobTerminal is returned when a write targets a job that can no longer change
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrJobCanceled is returned when a write targets a canceled job. It matches ErrJobTerminal.
	ErrJobCanceled = fmt.Errorf("%w: job was canceled", ErrJobTerminal)

	// ErrInvalidTransition is returned when a status change is not in the transition table
	ErrInvalidTransition = errors.New("invalid job status transition")

	// ErrDocumentNotFound is returned when a document cannot be found in the database
	ErrDocumentNotFound = errors.New("document not found")

	// ErrCatalogRecordNotFound is returned when a catalog has no record for a book id
	ErrCatalogRecordNotFound = errors.New("catalog record not found")

	// ErrUnknownCatalog is returned when a message names a source with no registered catalog
	ErrUnknownCatalog = errors.New("unknown catalog source")

	// ErrInvalidMessage is returned when a queue message fails validation
	ErrInvalidMessage = errors.New("invalid job message")

	// ErrMaxRetriesExceeded is returned when a job has used up its delivery attempts
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryableError wraps transient errors that should trigger a redelivery
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err, or anything it wraps, is a RetryableError.
func IsRetryable(err error) bool {
	var retryableErr *RetryableError
	return errors.As(err, &retryableErr)
}
