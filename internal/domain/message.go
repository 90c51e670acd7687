package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Message is the body published to the work queue for one job.
// A nil Filename means the job indexes catalog metadata only.
type Message struct {
	JobID    string  `json:"job_id"`
	Filename *string `json:"filename"`
	Meta     *Meta   `json:"meta"`
}

// FileBacked reports whether the job carries a file to ingest.
func (m *Message) FileBacked() bool {
	return m.Filename != nil && strings.TrimSpace(*m.Filename) != ""
}

// Meta carries the catalog fields that travel with a job.
type Meta struct {
	BookID     BookID `json:"id_book,omitempty"`
	Title      string `json:"title_book,omitempty"`
	Author     string `json:"author,omitempty"`
	DocumentID string `json:"doc_id,omitempty"`
	Source     string `json:"source_data,omitempty"`
}

// BookID is a catalog key. Catalogs send it as a number or a string.
type BookID string

func (b *BookID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = BookID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id_book must be a string or a number: %w", err)
	}
	*b = BookID(n.String())
	return nil
}

func (b BookID) String() string {
	return string(b)
}
