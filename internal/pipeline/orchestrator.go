// Package pipeline runs one ingestion job from quality gate to catalog flags.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/book-ingest/internal/domain"
	"github.com/cuongbtq/book-ingest/internal/loader"
	"github.com/cuongbtq/book-ingest/internal/quality"
	"github.com/cuongbtq/book-ingest/internal/storage"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 150
)

// Gate classifies a file before any expensive work is done on it.
type Gate interface {
	Check(ctx context.Context, path, ext string) (quality.Report, error)
}

// Embedder turns texts into vectors, one per text, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Index stores a document's chunks, replacing whatever it held before.
type Index interface {
	Upsert(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32, ns domain.Namespace) error
}

// Orchestrator sequences extract, chunk, embed and index for one job and
// records every step boundary in the job store.
type Orchestrator struct {
	jobs      storage.JobStore
	documents storage.DocumentStore
	catalogs  storage.Catalogs
	gate      Gate
	embedder  Embedder
	index     Index
	chunker   *Chunker
	uploadDir string
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithUploadDir sets the directory message filenames are resolved under.
func WithUploadDir(dir string) Option {
	return func(o *Orchestrator) error {
		o.uploadDir = dir
		return nil
	}
}

// WithChunking sets chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(o *Orchestrator) error {
		chunker, err := NewChunker(size, overlap)
		if err != nil {
			return err
		}
		o.chunker = chunker
		return nil
	}
}

// WithCatalogs registers the catalogs whose flags jobs may flip.
func WithCatalogs(catalogs storage.Catalogs) Option {
	return func(o *Orchestrator) error {
		o.catalogs = catalogs
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// New creates an orchestrator.
func New(
	jobs storage.JobStore,
	documents storage.DocumentStore,
	gate Gate,
	embedder Embedder,
	index Index,
	opts ...Option,
) (*Orchestrator, error) {
	switch {
	case jobs == nil:
		return nil, ErrJobStoreRequired
	case documents == nil:
		return nil, ErrDocumentStoreRequired
	case gate == nil:
		return nil, ErrGateRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case index == nil:
		return nil, ErrIndexRequired
	}

	o := &Orchestrator{
		jobs:      jobs,
		documents: documents,
		catalogs:  storage.Catalogs{},
		gate:      gate,
		embedder:  embedder,
		index:     index,
		uploadDir: ".",
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.chunker == nil {
		chunker, err := NewChunker(defaultChunkSize, defaultChunkOverlap)
		if err != nil {
			return nil, err
		}
		o.chunker = chunker
	}

	return o, nil
}

// run carries the per-job values every step needs.
type run struct {
	job    *domain.Job
	msg    domain.Message
	meta   domain.Meta
	title  string
	source string
	logger *slog.Logger
}

// Run executes the job named by msg. It never panics on bad input; every
// problem is reported through the Result.
func (o *Orchestrator) Run(ctx context.Context, msg domain.Message) Result {
	logger := o.logger.With(slog.String("job_id", msg.JobID))

	if strings.TrimSpace(msg.JobID) == "" {
		return permanent("message has no job id", domain.ErrInvalidMessage)
	}

	job, err := o.jobs.Start(ctx, msg.JobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			logger.Warn("Job not found, dropping message")
			return permanent("job not found", err)
		case errors.Is(err, domain.ErrJobTerminal), errors.Is(err, domain.ErrInvalidTransition):
			logger.Info("Job cannot be started, leaving it untouched", slog.Any("error", err))
			return permanent(err.Error(), err)
		}
		logger.Error("Failed to start job", slog.Any("error", err))
		return retryable("failed to start job", err)
	}

	r := &run{
		job:    job,
		msg:    msg,
		logger: logger.With(slog.String("document_id", job.DocumentID)),
	}
	if msg.Meta != nil {
		r.meta = *msg.Meta
	}
	r.title = strings.TrimSpace(r.meta.Title)
	r.source = strings.TrimSpace(r.meta.Source)

	r.logger.Info("Processing job",
		slog.Int("attempt", job.Attempts),
		slog.Bool("file_backed", msg.FileBacked()),
	)

	var result Result
	switch {
	case msg.FileBacked():
		result = o.runFile(ctx, r)
	case msg.Meta != nil:
		result = o.runMetadata(ctx, r)
	default:
		result = o.fail(ctx, r, errors.New("message has neither filename nor meta"), true)
	}

	r.logger.Info("Job finished",
		slog.String("outcome", string(result.Outcome)),
		slog.String("reason", result.Reason),
	)
	return result
}

func (o *Orchestrator) runFile(ctx context.Context, r *run) Result {
	o.fillFromDocument(ctx, r)
	path := o.resolve(*r.msg.Filename)

	report, err := o.gate.Check(ctx, path, "")
	if err != nil {
		return o.fail(ctx, r, fmt.Errorf("quality gate: %w", err), false)
	}
	r.logger.Info("Quality gate verdict",
		slog.String("path", path),
		slog.String("verdict", string(report.Verdict)),
		slog.String("book_quality", string(report.BookQuality)),
	)
	if !report.Accepted() {
		return o.fail(ctx, r, errors.New(string(report.Verdict)), true)
	}

	if err := o.advance(ctx, r, domain.StepExtract); err != nil {
		return o.stepFailed(ctx, r, err)
	}
	pages, err := loader.LoadFile(path)
	if err != nil {
		return o.fail(ctx, r, fmt.Errorf("extract: %w", err), false)
	}

	if err := o.advance(ctx, r, domain.StepChunk); err != nil {
		return o.stepFailed(ctx, r, err)
	}
	chunks, err := o.chunker.Split(pages)
	if err != nil {
		return o.fail(ctx, r, fmt.Errorf("chunk: %w", err), false)
	}
	if len(chunks) == 0 {
		return o.fail(ctx, r, errNoChunks, false)
	}
	for i := range chunks {
		chunks[i].Title = r.title
		chunks[i].Source = r.source
	}

	if result, ok := o.embedAndIndex(ctx, r, r.job.DocumentID, chunks, domain.NamespaceContent); !ok {
		return result
	}

	if r.meta.BookID != "" && r.source != "" {
		if err := o.flipCatalog(ctx, r, "file_is_indexed", storage.Catalog.SetFileIndexed); err != nil {
			return o.fail(ctx, r, err, false)
		}
	}
	if err := o.flipDocument(ctx, r); err != nil {
		return o.fail(ctx, r, err, false)
	}

	return o.succeed(ctx, r, len(chunks))
}

func (o *Orchestrator) runMetadata(ctx context.Context, r *run) Result {
	if r.title == "" {
		return o.fail(ctx, r, errors.New("metadata job has no title"), true)
	}

	if err := o.advance(ctx, r, domain.StepChunk); err != nil {
		return o.stepFailed(ctx, r, err)
	}
	body := r.title
	if author := strings.TrimSpace(r.meta.Author); author != "" {
		body += "\n" + author
	}
	chunks := []domain.Chunk{{Text: body, Title: r.title, Source: r.source}}

	key := domain.TitleEntryID(r.source, r.meta.BookID.String())
	if key == "" {
		key = r.job.DocumentID
	}
	if result, ok := o.embedAndIndex(ctx, r, key, chunks, domain.NamespaceTitles); !ok {
		return result
	}

	if r.meta.BookID != "" && r.source != "" {
		if err := o.flipCatalog(ctx, r, "is_indexed", storage.Catalog.SetIndexed); err != nil {
			return o.fail(ctx, r, err, false)
		}
	}

	return o.succeed(ctx, r, len(chunks))
}

func (o *Orchestrator) embedAndIndex(ctx context.Context, r *run, key string, chunks []domain.Chunk, ns domain.Namespace) (Result, bool) {
	if err := o.advance(ctx, r, domain.StepEmbed); err != nil {
		return o.stepFailed(ctx, r, err), false
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := o.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return o.fail(ctx, r, fmt.Errorf("embed: %w", err), false), false
	}

	if err := o.advance(ctx, r, domain.StepIndex); err != nil {
		return o.stepFailed(ctx, r, err), false
	}
	if err := o.index.Upsert(ctx, key, chunks, vectors, ns); err != nil {
		return o.fail(ctx, r, fmt.Errorf("index: %w", err), false), false
	}

	return Result{}, true
}

func (o *Orchestrator) flipCatalog(ctx context.Context, r *run, flag string, set func(storage.Catalog, context.Context, string) (bool, error)) error {
	catalog, err := o.catalogs.Lookup(r.source)
	if err != nil {
		r.logger.Warn("Skipping catalog flag", slog.String("source", r.source), slog.Any("error", err))
		return nil
	}

	flipped, err := set(catalog, ctx, r.meta.BookID.String())
	if err != nil {
		if errors.Is(err, domain.ErrCatalogRecordNotFound) {
			r.logger.Warn("Catalog record not found, flag not set",
				slog.String("source", r.source),
				slog.String("id_book", r.meta.BookID.String()),
			)
			return nil
		}
		return fmt.Errorf("set %s.%s: %w", r.source, flag, err)
	}

	r.logger.Info("Catalog flag reconciled",
		slog.String("source", r.source),
		slog.String("flag", flag),
		slog.Bool("flipped", flipped),
	)
	return nil
}

func (o *Orchestrator) flipDocument(ctx context.Context, r *run) error {
	flipped, err := o.documents.SetDocumentIndexed(ctx, r.job.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			r.logger.Debug("No document row for job")
			return nil
		}
		return fmt.Errorf("set document indexed: %w", err)
	}
	r.logger.Debug("Document flag reconciled", slog.Bool("flipped", flipped))
	return nil
}

// fillFromDocument uses the document row for whatever the message omits.
func (o *Orchestrator) fillFromDocument(ctx context.Context, r *run) {
	doc, err := o.documents.GetDocument(ctx, r.job.DocumentID)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			r.logger.Warn("Failed to load document", slog.Any("error", err))
		}
		return
	}
	if r.title == "" {
		r.title = doc.Title
	}
	if r.source == "" {
		r.source = doc.Source
	}
	if r.meta.BookID == "" {
		r.meta.BookID = domain.BookID(doc.BookID)
	}
}

// resolve places filename under the upload directory. Leading separators and
// dot-dot segments cannot climb out of it.
func (o *Orchestrator) resolve(filename string) string {
	clean := filepath.Clean(string(filepath.Separator) + strings.TrimSpace(filename))
	return filepath.Join(o.uploadDir, clean)
}

func (o *Orchestrator) advance(ctx context.Context, r *run, step domain.Step) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.jobs.Advance(ctx, r.job.ID, step); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			return fmt.Errorf("%w: %w", errStopped, err)
		}
		return fmt.Errorf("advance to %s: %w", step, err)
	}
	r.logger.Debug("Job advanced", slog.String("step", string(step)))
	return nil
}

// stepFailed handles an error from advance.
func (o *Orchestrator) stepFailed(ctx context.Context, r *run, err error) Result {
	if errors.Is(err, errStopped) {
		r.logger.Info("Job became terminal while running, stopping", slog.Any("error", err))
		return success("job stopped externally")
	}
	return o.fail(ctx, r, err, false)
}

func (o *Orchestrator) succeed(ctx context.Context, r *run, chunks int) Result {
	err := o.jobs.Succeed(context.WithoutCancel(ctx), r.job.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			r.logger.Info("Job became terminal before completion was recorded", slog.Any("error", err))
			return success("job stopped externally")
		}
		r.logger.Error("Failed to record success", slog.Any("error", err))
		return retryable("failed to record success", err)
	}

	r.logger.Info("Job succeeded", slog.Int("chunks", chunks))
	return success("")
}

// fail records the error on the job. Store writes outlive a canceled ctx so
// a timed-out run still leaves its reason behind.
func (o *Orchestrator) fail(ctx context.Context, r *run, cause error, final bool) Result {
	msg := cause.Error()
	if err := o.jobs.Fail(context.WithoutCancel(ctx), r.job.ID, msg, final); err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			r.logger.Info("Job became terminal before failure was recorded", slog.Any("error", err))
			return permanent(msg, cause)
		}
		r.logger.Error("Failed to record job failure",
			slog.String("cause", msg),
			slog.Any("error", err),
		)
		return retryable(msg, errors.Join(cause, err))
	}

	if final {
		r.logger.Warn("Job failed permanently", slog.String("reason", msg))
		return permanent(msg, cause)
	}
	r.logger.Warn("Job failed, will retry", slog.String("reason", msg))
	return retryable(msg, cause)
}
