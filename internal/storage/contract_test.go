package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

type stores struct {
	jobs JobStore
	docs DocumentStore
}

// runStoreContract exercises the behaviour every JobStore and DocumentStore
// implementation must share.
func runStoreContract(t *testing.T, newStores func(t *testing.T) stores) {
	ctx := context.Background()

	newJob := func(t *testing.T, s stores) string {
		t.Helper()
		id := uuid.NewString()
		require.NoError(t, s.jobs.Create(ctx, domain.NewJob(id, uuid.NewString(), time.Now().UTC())))
		return id
	}

	t.Run("create and get", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)

		job, err := s.jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusQueued, job.Status)
		assert.Equal(t, domain.StepStart, job.Step)
		assert.Zero(t, job.Progress)
		assert.NotNil(t, job.QueuedAt)
		assert.Nil(t, job.StartedAt)
	})

	t.Run("unknown job", func(t *testing.T) {
		s := newStores(t)
		_, err := s.jobs.Get(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		_, err = s.jobs.Start(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
		assert.ErrorIs(t, s.jobs.Advance(ctx, uuid.NewString(), domain.StepExtract), domain.ErrJobNotFound)
	})

	t.Run("happy path", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)

		job, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, job.Status)
		assert.Equal(t, 1, job.Progress)
		assert.Equal(t, 1, job.Attempts)
		assert.NotNil(t, job.StartedAt)

		for _, step := range []domain.Step{domain.StepExtract, domain.StepChunk, domain.StepEmbed, domain.StepIndex} {
			require.NoError(t, s.jobs.Advance(ctx, id, step))
			job, err = s.jobs.Get(ctx, id)
			require.NoError(t, err)
			want, _ := step.Progress()
			assert.Equal(t, step, job.Step)
			assert.Equal(t, want, job.Progress)
		}

		require.NoError(t, s.jobs.Succeed(ctx, id))
		job, err = s.jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusSucceeded, job.Status)
		assert.Equal(t, domain.StepDone, job.Step)
		assert.Equal(t, 100, job.Progress)
		assert.NotNil(t, job.FinishedAt)
		assert.Nil(t, job.ErrorMessage)
	})

	t.Run("advance requires processing", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)

		assert.ErrorIs(t, s.jobs.Advance(ctx, id, domain.StepExtract), domain.ErrInvalidTransition)
		assert.ErrorIs(t, s.jobs.Succeed(ctx, id), domain.ErrInvalidTransition)
		assert.ErrorIs(t, s.jobs.Advance(ctx, id, domain.StepDone), domain.ErrInvalidTransition)
		assert.ErrorIs(t, s.jobs.Advance(ctx, id, domain.StepError), domain.ErrInvalidTransition)
	})

	t.Run("progress never decreases", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)
		_, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)

		require.NoError(t, s.jobs.Advance(ctx, id, domain.StepEmbed))
		require.NoError(t, s.jobs.Fail(ctx, id, "embedder timeout", false))

		job, err := s.jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusFailed, job.Status)
		assert.Equal(t, domain.StepError, job.Step)
		assert.Equal(t, 70, job.Progress)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "embedder timeout", *job.ErrorMessage)
		assert.False(t, job.RetriesExhausted)

		job, err = s.jobs.Start(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 70, job.Progress)
		assert.Equal(t, 2, job.Attempts)
		assert.Nil(t, job.ErrorMessage)

		require.NoError(t, s.jobs.Advance(ctx, id, domain.StepExtract))
		job, err = s.jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 70, job.Progress)
	})

	t.Run("redelivery restarts a processing job", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)
		first, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)

		second, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusProcessing, second.Status)
		assert.Equal(t, 2, second.Attempts)
		assert.Equal(t, first.StartedAt.Unix(), second.StartedAt.Unix())
	})

	t.Run("permanent failure is terminal", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)
		_, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)
		require.NoError(t, s.jobs.Fail(ctx, id, "EMPTY_FILE", true))

		job, err := s.jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, job.RetriesExhausted)
		assert.True(t, job.IsTerminal())

		_, err = s.jobs.Start(ctx, id)
		assert.ErrorIs(t, err, domain.ErrJobTerminal)
		_, err = s.jobs.Cancel(ctx, id)
		assert.ErrorIs(t, err, domain.ErrJobTerminal)
	})

	t.Run("mark exhausted", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)

		assert.ErrorIs(t, s.jobs.MarkExhausted(ctx, id), domain.ErrInvalidTransition)

		_, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)
		require.NoError(t, s.jobs.Fail(ctx, id, "index unavailable", false))
		require.NoError(t, s.jobs.MarkExhausted(ctx, id))
		require.NoError(t, s.jobs.MarkExhausted(ctx, id))

		job, err := s.jobs.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, job.RetriesExhausted)
		require.NotNil(t, job.ErrorMessage)
		assert.Equal(t, "index unavailable", *job.ErrorMessage)
	})

	t.Run("cancel", func(t *testing.T) {
		s := newStores(t)
		queued := newJob(t, s)
		running := newJob(t, s)
		_, err := s.jobs.Start(ctx, running)
		require.NoError(t, err)

		for _, id := range []string{queued, running} {
			job, err := s.jobs.Cancel(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusCanceled, job.Status)
			assert.NotNil(t, job.FinishedAt)
		}

		_, err = s.jobs.Start(ctx, queued)
		assert.ErrorIs(t, err, domain.ErrJobCanceled)
		assert.ErrorIs(t, s.jobs.Advance(ctx, running, domain.StepIndex), domain.ErrJobTerminal)
		assert.ErrorIs(t, s.jobs.Succeed(ctx, running), domain.ErrJobTerminal)
		assert.ErrorIs(t, s.jobs.Fail(ctx, running, "late", false), domain.ErrJobTerminal)

		_, err = s.jobs.Cancel(ctx, queued)
		assert.ErrorIs(t, err, domain.ErrJobTerminal)
	})

	t.Run("succeeded job is immutable", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)
		_, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)
		require.NoError(t, s.jobs.Succeed(ctx, id))

		assert.ErrorIs(t, s.jobs.Succeed(ctx, id), domain.ErrJobTerminal)
		assert.ErrorIs(t, s.jobs.Fail(ctx, id, "x", false), domain.ErrJobTerminal)
		_, err = s.jobs.Start(ctx, id)
		assert.ErrorIs(t, err, domain.ErrJobTerminal)
	})

	t.Run("concurrent succeed applies once", func(t *testing.T) {
		s := newStores(t)
		id := newJob(t, s)
		_, err := s.jobs.Start(ctx, id)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 4)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = s.jobs.Succeed(ctx, id)
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrJobTerminal)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		s := newStores(t)
		docID := uuid.NewString()
		base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		var ids []string
		for i := 0; i < 5; i++ {
			id := uuid.NewString()
			require.NoError(t, s.jobs.Create(ctx, domain.NewJob(id, docID, base.Add(time.Duration(i)*time.Minute))))
			ids = append(ids, id)
		}

		page, err := s.jobs.List(ctx, JobFilter{DocumentID: docID, PageSize: 2})
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, ids[4], page[0].ID)
		assert.Equal(t, ids[3], page[1].ID)

		next, err := s.jobs.List(ctx, JobFilter{DocumentID: docID, PageSize: 2, Cursor: CursorAfter(page[1])})
		require.NoError(t, err)
		require.Len(t, next, 3)
		assert.Equal(t, ids[2], next[0].ID)

		_, err = s.jobs.Start(ctx, ids[0])
		require.NoError(t, err)
		processing, err := s.jobs.List(ctx, JobFilter{DocumentID: docID, Status: domain.JobStatusProcessing, PageSize: 10})
		require.NoError(t, err)
		require.Len(t, processing, 1)
		assert.Equal(t, ids[0], processing[0].ID)
	})

	t.Run("documents", func(t *testing.T) {
		s := newStores(t)
		doc := &domain.Document{
			ID:       uuid.NewString(),
			Title:    "War and Peace",
			FilePath: "uploads/war-and-peace.pdf",
			FileType: ".pdf",
			Source:   "library",
			BookID:   "42",
		}
		require.NoError(t, s.docs.CreateDocument(ctx, doc))

		got, err := s.docs.GetDocument(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.Title, got.Title)
		assert.False(t, got.IsIndexed)

		flipped, err := s.docs.SetDocumentIndexed(ctx, doc.ID)
		require.NoError(t, err)
		assert.True(t, flipped)

		flipped, err = s.docs.SetDocumentIndexed(ctx, doc.ID)
		require.NoError(t, err)
		assert.False(t, flipped)

		_, err = s.docs.SetDocumentIndexed(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		_, err = s.docs.GetDocument(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})
}
