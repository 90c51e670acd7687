package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/cuongbtq/book-ingest/internal/loader/loadertest"
	"github.com/cuongbtq/book-ingest/internal/quality"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func runApp(t *testing.T, args ...string) ([]quality.Report, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run(append([]string{"quality-check"}, args...))

	var reports []quality.Report
	dec := json.NewDecoder(&out)
	for dec.More() {
		var rep quality.Report
		require.NoError(t, dec.Decode(&rep))
		reports = append(reports, rep)
	}
	return reports, err
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "novel.txt", []byte(loadertest.Prose(1, 6000)))
	empty := writeFile(t, dir, "empty.txt", nil)
	scan := writeFile(t, dir, "scan.djvu", []byte("AT&TFORM"))

	reports, err := runApp(t, good, empty, scan, filepath.Join(dir, "missing.pdf"))
	require.NoError(t, err)
	require.Len(t, reports, 4)

	assert.Equal(t, quality.VerdictOKText, reports[0].Verdict)
	assert.Equal(t, quality.VerdictEmptyFile, reports[1].Verdict)
	assert.Equal(t, quality.VerdictUnsupported, reports[2].Verdict)
	assert.Equal(t, quality.VerdictMissingFile, reports[3].Verdict)
}

func TestClassifyCommand_Strict(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.txt", nil)

	reports, err := runApp(t, "--strict", empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 files rejected")
	require.Len(t, reports, 1)
}

func TestClassifyCommand_Thresholds(t *testing.T) {
	dir := t.TempDir()
	text := writeFile(t, dir, "novel.txt", []byte(loadertest.Prose(1, 6000)))
	th := writeFile(t, dir, "th.yaml", []byte("min_length: 100000\n"))

	reports, err := runApp(t, "--thresholds", th, text)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Accepted())
}

func TestClassifyCommand_NoFiles(t *testing.T) {
	_, err := runApp(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one file")
}

func TestLoadThresholds(t *testing.T) {
	th, err := loadThresholds("")
	require.NoError(t, err)
	assert.Equal(t, quality.DefaultThresholds(), th)

	dir := t.TempDir()
	path := writeFile(t, dir, "th.yaml", []byte(strings.Join([]string{
		"min_length: 500",
		"scan_sample_pages: 3",
	}, "\n")))

	th, err = loadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, 500, th.MinLength)
	assert.Equal(t, 3, th.ScanSamplePages)
	assert.Equal(t, quality.DefaultThresholds().MinEntropy, th.MinEntropy)

	_, err = loadThresholds(writeFile(t, dir, "bad.yaml", []byte("min_length: [")))
	assert.Error(t, err)

	_, err = loadThresholds(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
