package loader

import (
	"errors"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ErrMalformedPDF is returned when the PDF structure cannot be parsed.
var ErrMalformedPDF = errors.New("malformed pdf")

// PDFPage is the text layer of one PDF page and whether it draws images.
type PDFPage struct {
	Number   int
	Text     string
	HasImage bool
}

// ReadPDF reads up to limit pages (all pages when limit <= 0) and returns them
// along with the page count declared by the document. A page whose content
// stream cannot be interpreted yields empty text rather than an error.
func ReadPDF(r io.ReaderAt, size int64, limit int) (pages []PDFPage, err error) {
	pages, _, err = readPDF(r, size, limit)
	return pages, err
}

// PDFPageCount returns the number of pages a PDF declares.
func PDFPageCount(r io.ReaderAt, size int64) (int, error) {
	_, n, err := readPDF(r, size, -1)
	return n, err
}

// readPDF reads the first limit pages. limit 0 reads every page and a negative
// limit reads none. The pdf package reports structural errors by panicking.
func readPDF(r io.ReaderAt, size int64, limit int) (pages []PDFPage, numPages int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages, numPages = nil, 0
			err = fmt.Errorf("%w: %v", ErrMalformedPDF, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedPDF, err)
	}

	numPages = reader.NumPage()
	n := numPages
	if limit < 0 {
		n = 0
	} else if limit > 0 && limit < n {
		n = limit
	}

	pages = make([]PDFPage, 0, n)
	for i := 1; i <= n; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, PDFPage{Number: i})
			continue
		}
		text, textErr := p.GetPlainText(nil)
		if textErr != nil {
			text = ""
		}
		pages = append(pages, PDFPage{
			Number:   i,
			Text:     text,
			HasImage: hasImageXObject(p),
		})
	}

	return pages, numPages, nil
}

func hasImageXObject(p pdf.Page) bool {
	xobjects := p.Resources().Key("XObject")
	for _, name := range xobjects.Keys() {
		if xobjects.Key(name).Key("Subtype").Name() == "Image" {
			return true
		}
	}
	return false
}
