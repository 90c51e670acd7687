package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/book-ingest/internal/api/dto"
	"github.com/cuongbtq/book-ingest/internal/domain"
)

const (
	defaultBackfillSize = 100
	maxBackfillSize     = 1000
)

// IndexCatalog handles POST /api/v1/catalogs/:source/index
// Enqueues one metadata-only job per catalog title not yet indexed
func (h *JobHandler) IndexCatalog(c *gin.Context) {
	source := strings.TrimSpace(c.Param("source"))
	catalog, err := h.catalogs.Lookup(source)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown catalog",
		})
		return
	}

	var req dto.IndexCatalogRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.Limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultBackfillSize
	}
	if req.Limit > maxBackfillSize {
		req.Limit = maxBackfillSize
	}

	ctx := c.Request.Context()
	records, err := catalog.ListUnindexed(ctx, req.Limit)
	if err != nil {
		h.logger.Error("Failed to list unindexed titles",
			slog.String("source", source),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list catalog",
		})
		return
	}

	now := time.Now().UTC()
	resp := dto.IndexCatalogResponse{Source: source, Jobs: make([]dto.JobDTO, 0, len(records))}
	for _, rec := range records {
		meta := &domain.Meta{
			BookID:     domain.BookID(rec.BookID),
			Title:      strings.TrimSpace(rec.Title),
			DocumentID: domain.TitleEntryID(source, rec.BookID),
			Source:     source,
		}
		if rec.Author != nil {
			meta.Author = strings.TrimSpace(*rec.Author)
		}

		job, err := h.submit(ctx, now, nil, meta)
		if err != nil {
			status, msg := http.StatusInternalServerError, "Failed to create job"
			if errors.Is(err, errJobNotEnqueued) {
				status, msg = http.StatusServiceUnavailable, "Failed to enqueue job"
			}
			c.JSON(status, gin.H{
				"error":    msg,
				"enqueued": resp.Enqueued,
			})
			return
		}
		resp.Jobs = append(resp.Jobs, dto.FromJob(job))
		resp.Enqueued++
	}

	h.logger.Info("Catalog backfill enqueued",
		slog.String("source", source),
		slog.Int("enqueued", resp.Enqueued),
	)
	c.JSON(http.StatusAccepted, resp)
}
