package storage

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// DecodeJobCursor parses an opaque page token. An empty token means the
// first page.
func DecodeJobCursor(cursorStr string) (*JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var queuedAt int64
	if _, err := fmt.Sscanf(parts[0], "%d", &queuedAt); err != nil {
		return nil, fmt.Errorf("invalid queued_at in cursor: %w", err)
	}

	return &JobCursor{
		QueuedAt: time.Unix(0, queuedAt).UTC(),
		JobID:    parts[1],
	}, nil
}

// EncodeJobCursor is the inverse of DecodeJobCursor.
func EncodeJobCursor(cursor *JobCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.QueuedAt.UnixNano(), cursor.JobID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}

// CursorAfter returns the cursor positioned after job.
func CursorAfter(job domain.Job) *JobCursor {
	c := &JobCursor{JobID: job.ID}
	if job.QueuedAt != nil {
		c.QueuedAt = *job.QueuedAt
	}
	return c
}
