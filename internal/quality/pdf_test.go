package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/book-ingest/internal/loader"
	"github.com/cuongbtq/book-ingest/internal/loader/loadertest"
)

func TestDecidePDF(t *testing.T) {
	th := DefaultThresholds()
	healthy := &ShapeSignals{Entropy: 4.2, RepetitionScore: 0.2, LineDiversity: 0.95, DominantWordRatio: 0.1}
	garbled := &ShapeSignals{Entropy: 1.1, RepetitionScore: 0.9, LineDiversity: 0.05, DominantWordRatio: 0.9}

	tests := []struct {
		name    string
		metrics PDFMetrics
		want    Verdict
	}{
		{
			name:    "mostly image pages",
			metrics: PDFMetrics{Pages: 20, PagesWithText: 2, TotalChars: 500, AvgCharsPerPage: 25},
			want:    VerdictScannedOrLowText,
		},
		{
			name:    "healthy text layer",
			metrics: PDFMetrics{Pages: 10, PagesWithText: 10, TotalChars: 18000, AvgCharsPerPage: 1800, Shape: healthy},
			want:    VerdictOKTextPDF,
		},
		{
			name:    "ratio exactly at threshold",
			metrics: PDFMetrics{Pages: 10, PagesWithText: 7, TotalChars: 2000, AvgCharsPerPage: 200, Shape: healthy},
			want:    VerdictOKTextPDF,
		},
		{
			name:    "enough pages but too few characters",
			metrics: PDFMetrics{Pages: 4, PagesWithText: 4, TotalChars: 1999, AvgCharsPerPage: 499},
			want:    VerdictScannedOrLowText,
		},
		{
			name:    "implausible characters per page",
			metrics: PDFMetrics{Pages: 2, PagesWithText: 2, TotalChars: 80000, AvgCharsPerPage: 40000, Shape: healthy},
			want:    VerdictCorruptedTextLayer,
		},
		{
			name:    "degenerate text layer",
			metrics: PDFMetrics{Pages: 10, PagesWithText: 10, TotalChars: 30000, AvgCharsPerPage: 3000, Shape: garbled},
			want:    VerdictCorruptedTextLayer,
		},
		{
			name:    "no pages",
			metrics: PDFMetrics{},
			want:    VerdictScannedOrLowText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.metrics
			assert.Equal(t, tt.want, decidePDF(&m, th))
		})
	}
}

func TestProbeScan(t *testing.T) {
	th := DefaultThresholds()
	words := strings.Repeat("readable words ", 10)

	tests := []struct {
		name        string
		pages       []loader.PDFPage
		wantImages  int
		wantScanned bool
	}{
		{
			name:        "image pages without text",
			pages:       []loader.PDFPage{{HasImage: true}, {HasImage: true}, {HasImage: true, Text: "p. 3"}},
			wantImages:  3,
			wantScanned: true,
		},
		{
			name:        "image pages with a text layer",
			pages:       []loader.PDFPage{{HasImage: true, Text: words}, {HasImage: true, Text: words}},
			wantImages:  0,
			wantScanned: false,
		},
		{
			name:        "half image pages is not a majority",
			pages:       []loader.PDFPage{{HasImage: true}, {}},
			wantImages:  1,
			wantScanned: false,
		},
		{
			name:        "empty sample",
			pages:       nil,
			wantImages:  0,
			wantScanned: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m PDFMetrics
			probeScan(tt.pages, &m, th)

			assert.Equal(t, len(tt.pages), m.SampledPages)
			assert.Equal(t, tt.wantImages, m.ImagePages)
			assert.Equal(t, tt.wantScanned, likelyScanned(&m, th))
		})
	}
}

func TestClassify_GeneratedPDFs(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), nil)

	t.Run("text pdf", func(t *testing.T) {
		pages := make([]loadertest.PDFPage, 5)
		for i := range pages {
			pages[i] = loadertest.PDFPage{Lines: loadertest.Lines(loadertest.Prose(int64(10+i), 900))}
		}
		rep := c.Classify(writeFile(t, "book.pdf", loadertest.BuildPDF(pages)), "")

		require.NotNil(t, rep.PDF)
		assert.Equal(t, VerdictOKTextPDF, rep.Verdict)
		assert.Equal(t, QualityGood, rep.BookQuality)
		assert.Equal(t, 5, rep.PDF.Pages)
		assert.Equal(t, 5, rep.PDF.PagesWithText)
		assert.GreaterOrEqual(t, rep.PDF.TotalChars, 2000)
		require.NotNil(t, rep.PDF.Shape)
		assert.Greater(t, rep.PDF.Shape.Entropy, 3.0)
	})

	t.Run("scanned pdf", func(t *testing.T) {
		pages := make([]loadertest.PDFPage, 12)
		for i := range pages {
			pages[i] = loadertest.PDFPage{Image: true}
		}
		rep := c.Classify(writeFile(t, "scan.pdf", loadertest.BuildPDF(pages)), "")

		require.NotNil(t, rep.PDF)
		assert.Equal(t, VerdictLikelyScanned, rep.Verdict)
		assert.Equal(t, QualitySkipLoad, rep.BookQuality)
		assert.Equal(t, 10, rep.PDF.SampledPages)
		assert.Equal(t, 10, rep.PDF.ImagePages)
		assert.Zero(t, rep.PDF.Pages)
	})

	t.Run("low text pdf", func(t *testing.T) {
		pages := make([]loadertest.PDFPage, 20)
		pages[3] = loadertest.PDFPage{Lines: loadertest.Lines(loadertest.Prose(20, 250))}
		pages[11] = loadertest.PDFPage{Lines: loadertest.Lines(loadertest.Prose(21, 250))}
		rep := c.Classify(writeFile(t, "thin.pdf", loadertest.BuildPDF(pages)), "")

		require.NotNil(t, rep.PDF)
		assert.Equal(t, VerdictScannedOrLowText, rep.Verdict)
		assert.Equal(t, QualitySkipLoad, rep.BookQuality)
		assert.False(t, rep.Accepted())
		assert.Equal(t, 20, rep.PDF.Pages)
		assert.Equal(t, 2, rep.PDF.PagesWithText)
		assert.Less(t, rep.PDF.TotalChars, 2000)
	})

	t.Run("garbled text layer", func(t *testing.T) {
		lines := make([]string, 40)
		for i := range lines {
			lines[i] = strings.Repeat("x", 20)
		}
		pages := []loadertest.PDFPage{{Lines: lines}, {Lines: lines}, {Lines: lines}}
		rep := c.Classify(writeFile(t, "garbled.pdf", loadertest.BuildPDF(pages)), "")

		require.NotNil(t, rep.PDF)
		assert.Equal(t, VerdictCorruptedTextLayer, rep.Verdict)
		assert.Equal(t, QualitySkipLoad, rep.BookQuality)
	})
}
