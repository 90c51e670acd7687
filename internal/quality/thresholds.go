package quality

// Thresholds holds every tunable limit the classifier uses.
type Thresholds struct {
	// Readable text
	MinLength         int     `yaml:"min_length"`
	MinPrintableRatio float64 `yaml:"min_printable_ratio"`
	MinAlnumRatio     float64 `yaml:"min_alnum_ratio"`
	MaxBadCharRatio   float64 `yaml:"max_bad_char_ratio"`
	MaxCtrlRatio      float64 `yaml:"max_ctrl_ratio"`
	MinAvgTokenLen    float64 `yaml:"min_avg_token_len"`
	MaxAvgTokenLen    float64 `yaml:"max_avg_token_len"`
	LangPrefixChars   int     `yaml:"lang_prefix_chars"`

	// Content shape, good side
	MinEntropy           float64 `yaml:"min_entropy"`
	MaxRepetition        float64 `yaml:"max_repetition"`
	MinLineDiversity     float64 `yaml:"min_line_diversity"`
	MaxDominantWordRatio float64 `yaml:"max_dominant_word_ratio"`

	// Content shape, degenerate side
	DegenerateEntropy       float64 `yaml:"degenerate_entropy"`
	DegenerateRepetition    float64 `yaml:"degenerate_repetition"`
	DegenerateLineDiversity float64 `yaml:"degenerate_line_diversity"`

	// Shape sampling
	ShapeWindowChars int `yaml:"shape_window_chars"`
	ShapeMaxWindows  int `yaml:"shape_max_windows"`
	ShapeMinChars    int `yaml:"shape_min_chars"`
	MinWordLen       int `yaml:"min_word_len"`
	DominantTopWords int `yaml:"dominant_top_words"`

	// PDF
	ScanSamplePages    int     `yaml:"scan_sample_pages"`
	ScanMaxAvgChars    float64 `yaml:"scan_max_avg_chars"`
	MinPageChars       int     `yaml:"min_page_chars"`
	MinTextPageRatio   float64 `yaml:"min_text_page_ratio"`
	MinPDFTotalChars   int     `yaml:"min_pdf_total_chars"`
	MaxAvgCharsPerPage float64 `yaml:"max_avg_chars_per_page"`
	PDFTextSampleChars int     `yaml:"pdf_text_sample_chars"`
}

// DefaultThresholds returns the limits the classifier ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinLength:         1000,
		MinPrintableRatio: 0.95,
		MinAlnumRatio:     0.60,
		MaxBadCharRatio:   0.005,
		MaxCtrlRatio:      0.005,
		MinAvgTokenLen:    3,
		MaxAvgTokenLen:    20,
		LangPrefixChars:   5000,

		MinEntropy:           3.0,
		MaxRepetition:        0.6,
		MinLineDiversity:     0.3,
		MaxDominantWordRatio: 0.4,

		DegenerateEntropy:       2.0,
		DegenerateRepetition:    0.8,
		DegenerateLineDiversity: 0.2,

		ShapeWindowChars: 5000,
		ShapeMaxWindows:  8,
		ShapeMinChars:    200,
		MinWordLen:       3,
		DominantTopWords: 5,

		ScanSamplePages:    10,
		ScanMaxAvgChars:    100,
		MinPageChars:       50,
		MinTextPageRatio:   0.7,
		MinPDFTotalChars:   2000,
		MaxAvgCharsPerPage: 20000,
		PDFTextSampleChars: 20000,
	}
}

// WithDefaults fills zero fields from DefaultThresholds so a partial YAML
// section only overrides what it names.
func (t Thresholds) WithDefaults() Thresholds {
	d := DefaultThresholds()
	setInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}
	setFloat := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}

	setInt(&t.MinLength, d.MinLength)
	setFloat(&t.MinPrintableRatio, d.MinPrintableRatio)
	setFloat(&t.MinAlnumRatio, d.MinAlnumRatio)
	setFloat(&t.MaxBadCharRatio, d.MaxBadCharRatio)
	setFloat(&t.MaxCtrlRatio, d.MaxCtrlRatio)
	setFloat(&t.MinAvgTokenLen, d.MinAvgTokenLen)
	setFloat(&t.MaxAvgTokenLen, d.MaxAvgTokenLen)
	setInt(&t.LangPrefixChars, d.LangPrefixChars)
	setFloat(&t.MinEntropy, d.MinEntropy)
	setFloat(&t.MaxRepetition, d.MaxRepetition)
	setFloat(&t.MinLineDiversity, d.MinLineDiversity)
	setFloat(&t.MaxDominantWordRatio, d.MaxDominantWordRatio)
	setFloat(&t.DegenerateEntropy, d.DegenerateEntropy)
	setFloat(&t.DegenerateRepetition, d.DegenerateRepetition)
	setFloat(&t.DegenerateLineDiversity, d.DegenerateLineDiversity)
	setInt(&t.ShapeWindowChars, d.ShapeWindowChars)
	setInt(&t.ShapeMaxWindows, d.ShapeMaxWindows)
	setInt(&t.ShapeMinChars, d.ShapeMinChars)
	setInt(&t.MinWordLen, d.MinWordLen)
	setInt(&t.DominantTopWords, d.DominantTopWords)
	setInt(&t.ScanSamplePages, d.ScanSamplePages)
	setFloat(&t.ScanMaxAvgChars, d.ScanMaxAvgChars)
	setInt(&t.MinPageChars, d.MinPageChars)
	setFloat(&t.MinTextPageRatio, d.MinTextPageRatio)
	setInt(&t.MinPDFTotalChars, d.MinPDFTotalChars)
	setFloat(&t.MaxAvgCharsPerPage, d.MaxAvgCharsPerPage)
	setInt(&t.PDFTextSampleChars, d.PDFTextSampleChars)

	return t
}
