package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// Chunker splits page text into overlapping windows. Chunks never span a
// page boundary so every chunk keeps the page it came from.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a chunker measuring size and overlap in characters.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}

	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Split chunks every page in order. Index counts across the whole document.
func (c *Chunker) Split(pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts, err := c.splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to split page %d: %w", p.Number, err)
		}
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Index: len(chunks),
				Page:  p.Number,
				Text:  part,
			})
		}
	}
	return chunks, nil
}
