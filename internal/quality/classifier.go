package quality

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"github.com/cuongbtq/book-ingest/internal/loader"
)

// Report is the outcome of classifying one file. It is a value; nothing
// about it is persisted or mutated after Classify returns.
type Report struct {
	Path        string       `json:"path"`
	Ext         string       `json:"ext"`
	Type        loader.Kind  `json:"type"`
	Verdict     Verdict      `json:"verdict"`
	BookQuality BookQuality  `json:"book_quality"`
	Detail      string       `json:"detail,omitempty"`
	Text        *TextMetrics `json:"text,omitempty"`
	PDF         *PDFMetrics  `json:"pdf,omitempty"`
}

// Accepted reports whether the file may be chunked and indexed.
func (r Report) Accepted() bool {
	return r.Verdict.Accepted()
}

func (r *Report) set(v Verdict) {
	r.Verdict = v
	r.BookQuality = v.Quality()
}

// Classifier evaluates files against a fixed set of thresholds. It is safe
// for concurrent use.
type Classifier struct {
	th     Thresholds
	logger *slog.Logger
}

// NewClassifier creates a classifier. Zero threshold fields take defaults.
func NewClassifier(th Thresholds, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		th:     th.WithDefaults(),
		logger: logger,
	}
}

// Thresholds returns the limits in effect.
func (c *Classifier) Thresholds() Thresholds {
	return c.th
}

// Classify evaluates the file at path. ext overrides the path's extension
// when non-empty. It never fails; every problem resolves to a verdict.
func (c *Classifier) Classify(path, ext string) Report {
	if ext == "" {
		ext = loader.ExtOf(path)
	}
	ext = loader.NormalizeExt(ext)
	rep := Report{Path: path, Ext: ext, Type: loader.KindOf(ext)}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		rep.set(VerdictMissingFile)
		return rep
	}
	if info.Size() == 0 {
		rep.set(VerdictEmptyFile)
		return rep
	}
	if rep.Type == loader.KindUnknown {
		rep.set(VerdictUnsupported)
		return rep
	}

	data, err := os.ReadFile(path)
	if err != nil {
		rep.set(VerdictCorruptedFile)
		rep.Detail = err.Error()
		return rep
	}

	return c.evaluate(rep, data)
}

// ClassifyBytes evaluates in-memory content as if it were a file named name.
func (c *Classifier) ClassifyBytes(name string, data []byte) Report {
	ext := loader.ExtOf(name)
	rep := Report{Path: name, Ext: ext, Type: loader.KindOf(ext)}

	if len(data) == 0 {
		rep.set(VerdictEmptyFile)
		return rep
	}
	if rep.Type == loader.KindUnknown {
		rep.set(VerdictUnsupported)
		return rep
	}

	return c.evaluate(rep, data)
}

func (c *Classifier) evaluate(rep Report, data []byte) (out Report) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("Classifier recovered from panic",
				slog.String("path", rep.Path),
				slog.Any("panic", rec),
			)
			out = Report{Path: rep.Path, Ext: rep.Ext, Type: rep.Type}
			out.set(VerdictCorruptedFile)
			out.Detail = fmt.Sprint(rec)
		}
	}()

	if rep.Type == loader.KindPDF {
		return c.evaluatePDF(rep, bytes.NewReader(data), int64(len(data)))
	}
	return c.evaluateText(rep, data)
}

func (c *Classifier) evaluateText(rep Report, data []byte) Report {
	pages, err := loader.Load(data, rep.Ext)
	if err != nil {
		rep.set(VerdictCorruptedFile)
		rep.Detail = err.Error()
		return rep
	}

	metrics := basicMetrics(loader.JoinPages(pages), c.th)
	rep.Text = &metrics
	rep.set(decideText(metrics, c.th))
	return rep
}

func decideText(m TextMetrics, th Thresholds) Verdict {
	readable := m.Length >= th.MinLength &&
		m.PrintableRatio >= th.MinPrintableRatio &&
		m.AlnumRatio >= th.MinAlnumRatio &&
		m.BadCharRatio < th.MaxBadCharRatio &&
		m.CtrlRatio < th.MaxCtrlRatio &&
		m.AvgTokenLen >= th.MinAvgTokenLen &&
		m.AvgTokenLen <= th.MaxAvgTokenLen

	if readable && wellShaped(m.ShapeSignals, th) {
		return VerdictOKText
	}
	if degenerate(m.ShapeSignals, th) {
		return VerdictRepeatedOrLowQualityText
	}
	return VerdictBadText
}

func wellShaped(s ShapeSignals, th Thresholds) bool {
	return s.Entropy > th.MinEntropy &&
		s.RepetitionScore < th.MaxRepetition &&
		s.LineDiversity > th.MinLineDiversity &&
		s.DominantWordRatio < th.MaxDominantWordRatio
}

func degenerate(s ShapeSignals, th Thresholds) bool {
	return s.Entropy < th.DegenerateEntropy ||
		s.RepetitionScore > th.DegenerateRepetition ||
		s.LineDiversity < th.DegenerateLineDiversity
}
