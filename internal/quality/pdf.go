package quality

import (
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cuongbtq/book-ingest/internal/loader"
)

// PDFMetrics are the signals computed for PDF documents.
type PDFMetrics struct {
	Pages           int           `json:"pages"`
	PagesWithText   int           `json:"pages_with_text"`
	TotalChars      int           `json:"total_chars"`
	AvgCharsPerPage float64       `json:"avg_chars_per_page"`
	SampledPages    int           `json:"sampled_pages"`
	ImagePages      int           `json:"image_pages"`
	SampleAvgChars  float64       `json:"sample_avg_chars"`
	Shape           *ShapeSignals `json:"shape,omitempty"`
}

func (c *Classifier) evaluatePDF(rep Report, r io.ReaderAt, size int64) Report {
	sample, err := loader.ReadPDF(r, size, c.th.ScanSamplePages)
	if err != nil {
		rep.set(VerdictCorruptedFile)
		rep.Detail = err.Error()
		return rep
	}

	metrics := &PDFMetrics{}
	rep.PDF = metrics
	probeScan(sample, metrics, c.th)
	if likelyScanned(metrics, c.th) {
		rep.set(VerdictLikelyScanned)
		return rep
	}

	pages, err := loader.ReadPDF(r, size, 0)
	if err != nil {
		rep.set(VerdictCorruptedFile)
		rep.Detail = err.Error()
		return rep
	}

	var textSample strings.Builder
	for _, p := range pages {
		chars := utf8.RuneCountInString(p.Text)
		metrics.TotalChars += chars
		if nonSpaceCount(p.Text) >= c.th.MinPageChars {
			metrics.PagesWithText++
		}
		if textSample.Len() < c.th.PDFTextSampleChars {
			textSample.WriteString(p.Text)
			textSample.WriteByte('\n')
		}
	}
	metrics.Pages = len(pages)
	if metrics.Pages > 0 {
		metrics.AvgCharsPerPage = float64(metrics.TotalChars) / float64(metrics.Pages)
	}

	sampleText := prefixRunes(textSample.String(), c.th.PDFTextSampleChars)
	if utf8.RuneCountInString(sampleText) >= c.th.ShapeMinChars {
		shape := shapeSignals(sampleText, c.th)
		metrics.Shape = &shape
	}

	rep.set(decidePDF(metrics, c.th))
	return rep
}

// probeScan fills the scan-probe fields from the first sampled pages.
func probeScan(sample []loader.PDFPage, m *PDFMetrics, th Thresholds) {
	m.SampledPages = len(sample)
	total := 0
	for _, p := range sample {
		chars := nonSpaceCount(p.Text)
		total += chars
		if p.HasImage && chars < th.MinPageChars {
			m.ImagePages++
		}
	}
	if m.SampledPages > 0 {
		m.SampleAvgChars = float64(total) / float64(m.SampledPages)
	}
}

func likelyScanned(m *PDFMetrics, th Thresholds) bool {
	if m.SampledPages == 0 {
		return false
	}
	return m.SampleAvgChars < th.ScanMaxAvgChars && m.ImagePages*2 > m.SampledPages
}

// decidePDF turns full-document PDF metrics into a verdict.
func decidePDF(m *PDFMetrics, th Thresholds) Verdict {
	if m.AvgCharsPerPage > th.MaxAvgCharsPerPage {
		return VerdictCorruptedTextLayer
	}
	if m.Shape != nil && degenerate(*m.Shape, th) {
		return VerdictCorruptedTextLayer
	}
	if m.Pages > 0 &&
		float64(m.PagesWithText)/float64(m.Pages) >= th.MinTextPageRatio &&
		m.TotalChars >= th.MinPDFTotalChars {
		return VerdictOKTextPDF
	}
	return VerdictScannedOrLowText
}

func nonSpaceCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
