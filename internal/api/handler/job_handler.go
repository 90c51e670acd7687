package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/book-ingest/internal/api/dto"
	"github.com/cuongbtq/book-ingest/internal/domain"
	"github.com/cuongbtq/book-ingest/internal/loader"
	"github.com/cuongbtq/book-ingest/internal/storage"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
// Creates the job (and its document for file uploads) and enqueues it
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	fileBacked := req.Filename != nil && strings.TrimSpace(*req.Filename) != ""
	if !fileBacked {
		req.Filename = nil
		if strings.TrimSpace(req.Title) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "filename or title_book is required",
			})
			return
		}
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	documentID := uuid.NewString()
	if !fileBacked {
		if id := domain.TitleEntryID(req.Source, req.BookID.String()); id != "" {
			documentID = id
		}
	}

	if fileBacked {
		doc := &domain.Document{
			ID:        documentID,
			Title:     strings.TrimSpace(req.Title),
			FilePath:  strings.TrimSpace(*req.Filename),
			FileType:  loader.ExtOf(*req.Filename),
			Source:    strings.TrimSpace(req.Source),
			BookID:    req.BookID.String(),
			CreatedAt: now,
		}
		if err := h.documents.CreateDocument(ctx, doc); err != nil {
			h.logger.Error("Failed to create document", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to create job",
			})
			return
		}
	}

	meta := &domain.Meta{
		BookID:     req.BookID,
		Title:      strings.TrimSpace(req.Title),
		Author:     strings.TrimSpace(req.Author),
		DocumentID: documentID,
		Source:     strings.TrimSpace(req.Source),
	}
	job, err := h.submit(ctx, now, req.Filename, meta)
	if err != nil {
		h.respondSubmitError(c, err)
		return
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.ID),
		slog.String("document_id", documentID),
		slog.Bool("file_backed", fileBacked),
	)
	c.JSON(http.StatusAccepted, dto.FromJob(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, jobID, err, "Failed to get job")
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with keyset pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	status := domain.JobStatus(req.Status)
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid status",
		})
		return
	}

	cursor, err := storage.DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.jobs.List(c.Request.Context(), storage.JobFilter{
		Status:     status,
		DocumentID: req.DocumentID,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	// One extra row tells whether another page exists
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	resp := dto.ListJobsResponse{Jobs: make([]dto.JobDTO, len(jobs))}
	for i := range jobs {
		resp.Jobs[i] = dto.FromJob(&jobs[i])
	}
	if hasMore {
		resp.NextCursor = storage.EncodeJobCursor(storage.CursorAfter(jobs[len(jobs)-1]))
	}

	c.JSON(http.StatusOK, resp)
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Only queued and processing jobs can be canceled. A canceled job is
// terminal, so a worker already running it does not finish: its next store
// write is refused and it stops at that step boundary
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, ok := h.jobIDParam(c)
	if !ok {
		return
	}

	job, err := h.jobs.Cancel(c.Request.Context(), jobID)
	if err != nil {
		h.respondJobError(c, jobID, err, "Failed to cancel job")
		return
	}

	h.logger.Info("Job canceled", slog.String("job_id", jobID))
	c.JSON(http.StatusOK, dto.FromJob(job))
}

var (
	errJobNotCreated  = errors.New("failed to create job")
	errJobNotEnqueued = errors.New("failed to enqueue job")
)

// submit creates a queued job for meta.DocumentID and publishes it. A job
// whose message could not be published is canceled so it never sits queued.
func (h *JobHandler) submit(ctx context.Context, now time.Time, filename *string, meta *domain.Meta) (*domain.Job, error) {
	job := domain.NewJob(uuid.NewString(), meta.DocumentID, now)
	if err := h.jobs.Create(ctx, job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", errJobNotCreated, err)
	}

	if err := h.producer.Enqueue(ctx, job.ID, filename, meta); err != nil {
		h.logger.Error("Failed to enqueue job",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		if _, cancelErr := h.jobs.Cancel(ctx, job.ID); cancelErr != nil {
			h.logger.Error("Failed to cancel unenqueued job",
				slog.String("job_id", job.ID),
				slog.String("error", cancelErr.Error()),
			)
		}
		return nil, fmt.Errorf("%w: %w", errJobNotEnqueued, err)
	}
	return job, nil
}

func (h *JobHandler) respondSubmitError(c *gin.Context, err error) {
	if errors.Is(err, errJobNotEnqueued) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Failed to enqueue job",
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to create job",
	})
}

func (h *JobHandler) jobIDParam(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return "", false
	}
	return jobID, true
}

func (h *JobHandler) respondJobError(c *gin.Context, jobID string, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
	case errors.Is(err, domain.ErrJobTerminal), errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
	default:
		h.logger.Error(msg, slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": msg,
		})
	}
}
