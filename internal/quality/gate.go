package quality

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// Gate runs classification on a bounded goroutine pool so file decoding
// never runs unbounded on the callers' goroutines.
type Gate struct {
	classifier *Classifier
	pool       *ants.Pool
	logger     *slog.Logger
}

// NewGate creates a gate with at most size concurrent classifications.
func NewGate(classifier *Classifier, size int, logger *slog.Logger) (*Gate, error) {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		logger.Error("Quality gate task panicked", slog.Any("panic", p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier pool: %w", err)
	}

	return &Gate{
		classifier: classifier,
		pool:       pool,
		logger:     logger,
	}, nil
}

// Check classifies the file, waiting for a free pool slot. The only errors
// are context cancellation and pool shutdown; verdicts are never errors.
func (g *Gate) Check(ctx context.Context, path, ext string) (Report, error) {
	result := make(chan Report, 1)

	err := g.pool.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		result <- g.classifier.Classify(path, ext)
	})
	if err != nil {
		return Report{}, fmt.Errorf("failed to submit classification: %w", err)
	}

	select {
	case rep := <-result:
		g.logger.Debug("File classified",
			slog.String("path", path),
			slog.String("verdict", string(rep.Verdict)),
			slog.String("book_quality", string(rep.BookQuality)),
		)
		return rep, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}

// Running returns the number of classifications in flight.
func (g *Gate) Running() int {
	return g.pool.Running()
}

// Release stops the pool. Pending Check calls fail afterwards.
func (g *Gate) Release() {
	g.pool.Release()
}
