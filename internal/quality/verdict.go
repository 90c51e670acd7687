// Package quality decides whether a document's extracted text is worth indexing.
package quality

// Verdict is the fine-grained outcome of classifying one file.
type Verdict string

const (
	VerdictOKText                   Verdict = "OK_TEXT"
	VerdictOKTextPDF                Verdict = "OK_TEXT_PDF"
	VerdictOKOCR                    Verdict = "OK_OCR"
	VerdictMissingFile              Verdict = "MISSING_FILE"
	VerdictEmptyFile                Verdict = "EMPTY_FILE"
	VerdictUnsupported              Verdict = "UNSUPPORTED"
	VerdictCorruptedFile            Verdict = "CORRUPTED_FILE"
	VerdictLikelyScanned            Verdict = "LIKELY_SCANNED"
	VerdictScannedOrLowText         Verdict = "SCANNED_OR_LOW_TEXT"
	VerdictScannedNeedsOCR          Verdict = "SCANNED_NEEDS_OCR"
	VerdictCorruptedTextLayer       Verdict = "CORRUPTED_TEXT_LAYER"
	VerdictBadText                  Verdict = "BAD_TEXT"
	VerdictRepeatedOrLowQualityText Verdict = "REPEATED_OR_LOW_QUALITY_TEXT"
)

// BookQuality is the coarse bucket the pipeline gate acts on.
type BookQuality string

const (
	QualityGood     BookQuality = "GOOD"
	QualityPoor     BookQuality = "POOR"
	QualityReject   BookQuality = "REJECT"
	QualitySkipLoad BookQuality = "SKIP_LOAD"
	QualityUnknown  BookQuality = "UNKNOWN"
)

// Quality maps a verdict to its book quality bucket.
func (v Verdict) Quality() BookQuality {
	switch v {
	case VerdictOKText, VerdictOKTextPDF, VerdictOKOCR:
		return QualityGood
	case VerdictMissingFile, VerdictEmptyFile, VerdictUnsupported, VerdictCorruptedFile:
		return QualityReject
	case VerdictLikelyScanned, VerdictScannedOrLowText, VerdictScannedNeedsOCR, VerdictCorruptedTextLayer:
		return QualitySkipLoad
	case VerdictBadText, VerdictRepeatedOrLowQualityText:
		return QualityPoor
	}
	return QualityUnknown
}

// Accepted reports whether ingestion may continue past the gate.
func (v Verdict) Accepted() bool {
	return v.Quality() == QualityGood
}
