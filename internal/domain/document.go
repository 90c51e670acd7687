package domain

import (
	"strings"
	"time"
)

// Document is a file-backed ingestion target.
type Document struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	FilePath  string    `db:"file_path"`
	FileType  string    `db:"file_type"`
	Source    string    `db:"source"`
	BookID    string    `db:"id_book"`
	IsIndexed bool      `db:"is_indexed"`
	CreatedAt time.Time `db:"created_at"`
}

// CatalogRecord is the part of an external catalog row the pipeline reads and flips.
type CatalogRecord struct {
	BookID        string  `db:"id_book"`
	Title         string  `db:"title"`
	Author        *string `db:"author"`
	DownloadURL   *string `db:"download_url"`
	IsIndexed     bool    `db:"is_indexed"`
	FileIsIndexed bool    `db:"file_is_indexed"`
}

// Namespace separates full-text chunks from title-level entries in the index.
type Namespace string

const (
	NamespaceContent Namespace = "content"
	NamespaceTitles  Namespace = "titles"
)

// TitleEntryID is the index key for the title entry of a catalog book, so
// every metadata job for the same book replaces one entry. It is empty when
// either part is missing.
func TitleEntryID(source, bookID string) string {
	source, bookID = strings.TrimSpace(source), strings.TrimSpace(bookID)
	if source == "" || bookID == "" {
		return ""
	}
	return string(NamespaceTitles) + ":" + source + ":" + bookID
}

// Chunk is one window of document text, carrying the page it came from.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Page       int       `json:"page"`
	Text       string    `json:"text"`
	Title      string    `json:"title,omitempty"`
	Source     string    `json:"source,omitempty"`
	Namespace  Namespace `json:"namespace"`
	Vector     []float32 `json:"vector,omitempty"`
}

// Page is the extracted text of one page or section, numbered from 1.
type Page struct {
	Number int
	Text   string
}
