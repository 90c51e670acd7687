// Package embedding turns chunk text into vectors through an
// OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultBatchSize = 64

// Config selects the embedding service.
type Config struct {
	Host      string `yaml:"host"`
	Model     string `yaml:"model"`
	Token     string `yaml:"token"`
	BatchSize int    `yaml:"batch_size"`
}

// Validate checks the fields New needs.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("embedding host is required")
	}
	if c.Model == "" {
		return errors.New("embedding model is required")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("embedding batch size must not be negative, got %d", c.BatchSize)
	}
	return nil
}

// Embedder produces one vector per input text.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// New creates an embedder for an OpenAI-compatible service. Local services
// that need no authentication get the placeholder token "none".
func New(cfg Config, logger *slog.Logger) (*Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	token := cfg.Token
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.Host),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewWithClient(client, cfg.BatchSize, logger)
}

// NewWithClient wraps any embeddings client, batching requests.
func NewWithClient(client embeddings.EmbedderClient, batchSize int, logger *slog.Logger) (*Embedder, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(batchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Embedder{
		embedder: embedder,
		logger:   logger.With(slog.String("component", "embedder")),
	}, nil
}

// EmbedTexts embeds texts in order. The caller's slice is left untouched.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	e.logger.Debug("Generating embeddings", slog.Int("count", len(texts)))

	input := make([]string, len(texts))
	copy(input, texts)

	vectors, err := e.embedder.EmbedDocuments(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	return vectors, nil
}
