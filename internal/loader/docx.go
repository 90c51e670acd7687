package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cuongbtq/book-ingest/internal/domain"
)

const docxBody = "word/document.xml"

// LoadDOCX extracts paragraph text from a Word document. Explicit page
// breaks start a new page; a document without them is a single page.
func LoadDOCX(data []byte) ([]domain.Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	body, err := readZipFile(zr, docxBody)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var (
		pages  []domain.Page
		cur    strings.Builder
		inText bool
	)
	flush := func() {
		pages = append(pages, domain.Page{Number: len(pages) + 1, Text: Normalize(strings.TrimSpace(cur.String()))})
		cur.Reset()
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse docx: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				if attr(t, "type") == "page" {
					flush()
				} else {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				cur.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	flush()

	return pages, nil
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", name, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
