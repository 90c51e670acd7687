package loader

import (
	"strings"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// LoadTXT decodes a plain text file. Form feeds split pages.
func LoadTXT(data []byte) ([]domain.Page, error) {
	decoded, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return splitFormFeeds(decoded.Text), nil
}

func splitFormFeeds(text string) []domain.Page {
	parts := strings.Split(text, "\f")
	pages := make([]domain.Page, len(parts))
	for i, part := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: part}
	}
	return pages
}
