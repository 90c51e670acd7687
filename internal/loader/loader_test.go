package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuongbtq/book-ingest/internal/loader/loadertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{"pdf", KindPDF},
		{".PDF", KindPDF},
		{"txt", KindTextLike},
		{".docx", KindTextLike},
		{"EPUB", KindTextLike},
		{"djvu", KindUnknown},
		{"", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.ext))
		})
	}
}

func TestLoadTXT_FormFeedPages(t *testing.T) {
	pages, err := LoadTXT([]byte("first page\fsecond page"))
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "first page", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "second page", pages[1].Text)
}

func TestLoadDOCX(t *testing.T) {
	data := loadertest.BuildDOCX([][]string{
		{"Chapter one", "It was a bright cold day & the clocks were striking."},
		{"Chapter two"},
	})

	pages, err := LoadDOCX(data)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Chapter one\nIt was a bright cold day & the clocks were striking.", pages[0].Text)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "Chapter two", pages[1].Text)
}

func TestLoadDOCX_NotAZip(t *testing.T) {
	_, err := LoadDOCX([]byte("definitely not a zip archive"))
	assert.Error(t, err)
}

func TestLoadEPUB(t *testing.T) {
	data := loadertest.BuildEPUB([][]string{
		{"Once upon a time", "there was a reader."},
		{"The end."},
	})

	pages, err := LoadEPUB(data)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Once upon a time\nthere was a reader.", pages[0].Text)
	assert.NotContains(t, pages[0].Text, "Section")
	assert.NotContains(t, pages[0].Text, "margin")
	assert.Equal(t, "The end.", pages[1].Text)
}

func TestReadPDF(t *testing.T) {
	data := loadertest.BuildPDF([]loadertest.PDFPage{
		{Lines: []string{"Hello from page one", "second line"}},
		{Image: true},
		{Lines: []string{"Page three (with parens)"}},
	})

	pages, err := ReadPDF(bytes.NewReader(data), int64(len(data)), 0)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Contains(t, pages[0].Text, "Hello from page one")
	assert.Contains(t, pages[0].Text, "second line")
	assert.False(t, pages[0].HasImage)

	assert.Empty(t, strings.TrimSpace(pages[1].Text))
	assert.True(t, pages[1].HasImage)

	assert.Contains(t, pages[2].Text, "Page three (with parens)")

	n, err := PDFPageCount(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestReadPDF_Limit(t *testing.T) {
	data := loadertest.BuildPDF([]loadertest.PDFPage{
		{Lines: []string{"one"}},
		{Lines: []string{"two"}},
		{Lines: []string{"three"}},
	})

	pages, err := ReadPDF(bytes.NewReader(data), int64(len(data)), 2)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestReadPDF_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not a pdf", bytes.Repeat([]byte("garbage "), 40)},
		{"truncated", loadertest.BuildPDF([]loadertest.PDFPage{{Lines: []string{"x"}}})[:120]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPDF(bytes.NewReader(tt.data), int64(len(tt.data)), 0)
			assert.ErrorIs(t, err, ErrMalformedPDF)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.txt")
	require.NoError(t, os.WriteFile(path, []byte("some words"), 0o644))

	pages, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "some words", JoinPages(pages))

	_, err = Load([]byte("x"), "djvu")
	assert.ErrorIs(t, err, ErrUnsupported)
}
