package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdict_Quality(t *testing.T) {
	tests := []struct {
		verdict  Verdict
		quality  BookQuality
		accepted bool
	}{
		{VerdictOKText, QualityGood, true},
		{VerdictOKTextPDF, QualityGood, true},
		{VerdictOKOCR, QualityGood, true},
		{VerdictMissingFile, QualityReject, false},
		{VerdictEmptyFile, QualityReject, false},
		{VerdictUnsupported, QualityReject, false},
		{VerdictCorruptedFile, QualityReject, false},
		{VerdictLikelyScanned, QualitySkipLoad, false},
		{VerdictScannedOrLowText, QualitySkipLoad, false},
		{VerdictScannedNeedsOCR, QualitySkipLoad, false},
		{VerdictCorruptedTextLayer, QualitySkipLoad, false},
		{VerdictBadText, QualityPoor, false},
		{VerdictRepeatedOrLowQualityText, QualityPoor, false},
		{Verdict("SOMETHING_ELSE"), QualityUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			assert.Equal(t, tt.quality, tt.verdict.Quality())
			assert.Equal(t, tt.accepted, tt.verdict.Accepted())
		})
	}
}

func TestThresholds_WithDefaults(t *testing.T) {
	th := Thresholds{MinLength: 250, MaxRepetition: 0.7}.WithDefaults()
	d := DefaultThresholds()

	assert.Equal(t, 250, th.MinLength)
	assert.Equal(t, 0.7, th.MaxRepetition)
	assert.Equal(t, d.MinPrintableRatio, th.MinPrintableRatio)
	assert.Equal(t, d.ScanSamplePages, th.ScanSamplePages)
	assert.Equal(t, d, Thresholds{}.WithDefaults())
}
