// Package loader turns raw document bytes into page-level text.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

// Kind is the family of a document format.
type Kind string

const (
	KindPDF      Kind = "pdf"
	KindTextLike Kind = "textlike"
	KindUnknown  Kind = "unknown"
)

// ErrUnsupported is returned for extensions no loader handles.
var ErrUnsupported = errors.New("unsupported document format")

// NormalizeExt lower-cases an extension and strips its leading dot.
func NormalizeExt(ext string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
}

// ExtOf returns the normalised extension of a path.
func ExtOf(path string) string {
	return NormalizeExt(filepath.Ext(path))
}

// KindOf classifies an extension.
func KindOf(ext string) Kind {
	switch NormalizeExt(ext) {
	case "pdf":
		return KindPDF
	case "txt", "docx", "epub":
		return KindTextLike
	}
	return KindUnknown
}

// LoadFile reads a document from disk and returns its pages.
func LoadFile(path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Load(data, ExtOf(path))
}

// Load extracts pages from document bytes of the given extension.
// Pages with no text are kept so page numbers stay aligned with the source.
func Load(data []byte, ext string) ([]domain.Page, error) {
	switch NormalizeExt(ext) {
	case "pdf":
		pages, err := ReadPDF(bytes.NewReader(data), int64(len(data)), 0)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Page, len(pages))
		for i, p := range pages {
			out[i] = domain.Page{Number: p.Number, Text: p.Text}
		}
		return out, nil
	case "txt":
		return LoadTXT(data)
	case "docx":
		return LoadDOCX(data)
	case "epub":
		return LoadEPUB(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
}

// JoinPages concatenates page texts with blank lines between them.
func JoinPages(pages []domain.Page) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
