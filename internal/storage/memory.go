package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// MemoryStore is a JobStore and DocumentStore held in process memory. It
// applies the same conditional rules as the Postgres stores and is used by
// tests and single-process runs.
type MemoryStore struct {
	mu        sync.Mutex
	jobs      map[string]domain.Job
	documents map[string]domain.Document
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:      make(map[string]domain.Job),
		documents: make(map[string]domain.Document),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Create(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return fmt.Errorf("failed to create job: duplicate id %s", job.ID)
	}
	j := *job
	now := m.now()
	if j.QueuedAt == nil {
		j.QueuedAt = &now
	}
	j.UpdatedAt = now
	m.jobs[j.ID] = j
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return &j, nil
}

func (m *MemoryStore) List(_ context.Context, filter JobFilter) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Job
	for _, j := range m.jobs {
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		if filter.DocumentID != "" && j.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Cursor != nil && !before(j, filter.Cursor) {
			continue
		}
		out = append(out, j)
	}

	sort.Slice(out, func(a, b int) bool {
		qa, qb := queuedAt(out[a]), queuedAt(out[b])
		if !qa.Equal(qb) {
			return qa.After(qb)
		}
		return out[a].ID > out[b].ID
	})

	if filter.PageSize > 0 && len(out) > filter.PageSize+1 {
		out = out[:filter.PageSize+1]
	}
	return out, nil
}

func (m *MemoryStore) Start(_ context.Context, id string) (*domain.Job, error) {
	var out domain.Job
	err := m.transition(id, domain.JobStatusProcessing, func(j *domain.Job, now time.Time) {
		progress, _ := domain.StepStart.Progress()
		j.Status = domain.JobStatusProcessing
		j.Step = domain.StepStart
		j.Progress = max(j.Progress, progress)
		j.Attempts++
		j.ErrorMessage = nil
		j.FinishedAt = nil
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
		out = *j
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MemoryStore) Advance(_ context.Context, id string, step domain.Step) error {
	progress, ok := step.Progress()
	if !ok || step == domain.StepDone {
		return fmt.Errorf("%w: cannot advance to step %q", domain.ErrInvalidTransition, step)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if j.Status != domain.JobStatusProcessing {
		return rejection(&j)
	}
	j.Step = step
	j.Progress = max(j.Progress, progress)
	j.UpdatedAt = m.now()
	m.jobs[id] = j
	return nil
}

func (m *MemoryStore) Succeed(_ context.Context, id string) error {
	return m.transition(id, domain.JobStatusSucceeded, func(j *domain.Job, now time.Time) {
		j.Status = domain.JobStatusSucceeded
		j.Step = domain.StepDone
		j.Progress = 100
		j.ErrorMessage = nil
		j.FinishedAt = &now
	})
}

func (m *MemoryStore) Fail(_ context.Context, id string, msg string, permanent bool) error {
	return m.transition(id, domain.JobStatusFailed, func(j *domain.Job, now time.Time) {
		j.Status = domain.JobStatusFailed
		j.Step = domain.StepError
		j.ErrorMessage = &msg
		j.RetriesExhausted = j.RetriesExhausted || permanent
		j.FinishedAt = &now
	})
}

func (m *MemoryStore) MarkExhausted(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if j.Status != domain.JobStatusFailed {
		return rejection(&j)
	}
	if !j.RetriesExhausted {
		j.RetriesExhausted = true
		j.UpdatedAt = m.now()
		m.jobs[id] = j
	}
	return nil
}

func (m *MemoryStore) Cancel(_ context.Context, id string) (*domain.Job, error) {
	var out domain.Job
	err := m.transition(id, domain.JobStatusCanceled, func(j *domain.Job, now time.Time) {
		j.Status = domain.JobStatusCanceled
		j.FinishedAt = &now
		out = *j
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *MemoryStore) transition(id string, to domain.JobStatus, apply func(j *domain.Job, now time.Time)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if !j.CanMoveTo(to) {
		return rejection(&j)
	}

	now := m.now()
	apply(&j, now)
	j.UpdatedAt = now
	m.jobs[id] = j
	return nil
}

func (m *MemoryStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[doc.ID]; ok {
		return fmt.Errorf("failed to create document: duplicate id %s", doc.ID)
	}
	d := *doc
	d.CreatedAt = m.now()
	m.documents[d.ID] = d
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.documents[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return &d, nil
}

func (m *MemoryStore) SetDocumentIndexed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.documents[id]
	if !ok {
		return false, domain.ErrDocumentNotFound
	}
	if d.IsIndexed {
		return false, nil
	}
	d.IsIndexed = true
	m.documents[id] = d
	return true, nil
}

func queuedAt(j domain.Job) time.Time {
	if j.QueuedAt == nil {
		return time.Time{}
	}
	return *j.QueuedAt
}

func before(j domain.Job, c *JobCursor) bool {
	q := queuedAt(j)
	if q.Equal(c.QueuedAt) {
		return j.ID < c.JobID
	}
	return q.Before(c.QueuedAt)
}

// MemoryCatalog is a Catalog held in process memory.
type MemoryCatalog struct {
	name    string
	mu      sync.Mutex
	records map[string]domain.CatalogRecord
	flips   int
}

func NewMemoryCatalog(name string, records ...domain.CatalogRecord) *MemoryCatalog {
	c := &MemoryCatalog{
		name:    name,
		records: make(map[string]domain.CatalogRecord, len(records)),
	}
	for _, r := range records {
		c.records[r.BookID] = r
	}
	return c
}

func (c *MemoryCatalog) Name() string {
	return c.name
}

func (c *MemoryCatalog) FindByBookID(_ context.Context, bookID string) (*domain.CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[bookID]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrCatalogRecordNotFound, c.name, bookID)
	}
	return &r, nil
}

func (c *MemoryCatalog) ListUnindexed(_ context.Context, limit int) ([]domain.CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.CatalogRecord, 0)
	for _, r := range c.records {
		if !r.IsIndexed && strings.TrimSpace(r.Title) != "" {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemoryCatalog) SetIndexed(_ context.Context, bookID string) (bool, error) {
	return c.flip(bookID, func(r *domain.CatalogRecord) *bool { return &r.IsIndexed })
}

func (c *MemoryCatalog) SetFileIndexed(_ context.Context, bookID string) (bool, error) {
	return c.flip(bookID, func(r *domain.CatalogRecord) *bool { return &r.FileIsIndexed })
}

// Flips returns how many false->true changes the catalog has applied.
func (c *MemoryCatalog) Flips() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flips
}

func (c *MemoryCatalog) flip(bookID string, field func(*domain.CatalogRecord) *bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.records[bookID]
	if !ok {
		return false, fmt.Errorf("%w: %s/%s", domain.ErrCatalogRecordNotFound, c.name, bookID)
	}
	flag := field(&r)
	if *flag {
		return false, nil
	}
	*flag = true
	c.records[bookID] = r
	c.flips++
	return true, nil
}
