package quality

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// TextMetrics are the signals computed for text-like content.
type TextMetrics struct {
	Length         int     `json:"length"`
	PrintableRatio float64 `json:"printable_ratio"`
	AlnumRatio     float64 `json:"alnum_ratio"`
	BadCharRatio   float64 `json:"bad_char_ratio"`
	CtrlRatio      float64 `json:"ctrl_ratio"`
	AvgTokenLen    float64 `json:"avg_token_len"`
	Lang           string  `json:"lang,omitempty"`
	ShapeSignals
}

// ShapeSignals describe how varied a text is. They are shared by every
// content family so PDF text layers and text files are judged alike.
type ShapeSignals struct {
	Entropy           float64 `json:"entropy"`
	RepetitionScore   float64 `json:"repetition_score"`
	LineDiversity     float64 `json:"line_diversity"`
	DominantWordRatio float64 `json:"dominant_word_ratio"`
	Windows           int     `json:"shape_windows"`
}

func basicMetrics(text string, th Thresholds) TextMetrics {
	var n, printable, alnum, bad, ctrl int
	for _, r := range text {
		n++
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			printable++
		case r < 32 || r == 0x7f:
			ctrl++
		case unicode.IsPrint(r):
			printable++
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			alnum++
		}
		if r == utf8.RuneError {
			bad++
		}
	}

	m := TextMetrics{Length: n}
	if n == 0 {
		m.CtrlRatio = 1
		return m
	}

	m.PrintableRatio = float64(printable) / float64(n)
	m.AlnumRatio = float64(alnum) / float64(n)
	m.BadCharRatio = float64(bad) / float64(n)
	m.CtrlRatio = float64(ctrl) / float64(n)

	tokens := strings.Fields(text)
	if len(tokens) > 0 {
		total := 0
		for _, tok := range tokens {
			total += utf8.RuneCountInString(tok)
		}
		m.AvgTokenLen = float64(total) / float64(len(tokens))
	}

	m.Lang = detectLang(prefixRunes(text, th.LangPrefixChars))
	m.ShapeSignals = shapeSignals(text, th)
	return m
}

// detectLang uses a trigram model with no random state, so the same prefix
// always yields the same answer.
func detectLang(prefix string) string {
	if strings.IndexFunc(prefix, unicode.IsLetter) < 0 {
		return ""
	}
	info := whatlanggo.Detect(prefix)
	if info.Confidence == 0 {
		return ""
	}
	return strings.ToLower(info.Lang.String())
}

func prefixRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// shapeSignals averages the word-level signals over evenly spaced windows.
// Word uniqueness falls as texts grow, so a whole book is never scored in
// one piece. Line diversity does not drift with length and is taken over
// the whole text.
func shapeSignals(text string, th Thresholds) ShapeSignals {
	windows := sampleWindows(text, th.ShapeWindowChars, th.ShapeMaxWindows)
	if len(windows) == 0 {
		return ShapeSignals{}
	}

	var sum ShapeSignals
	for _, w := range windows {
		s := windowSignals(w, th)
		sum.Entropy += s.Entropy
		sum.RepetitionScore += s.RepetitionScore
		sum.DominantWordRatio += s.DominantWordRatio
	}

	k := float64(len(windows))
	return ShapeSignals{
		Entropy:           sum.Entropy / k,
		RepetitionScore:   sum.RepetitionScore / k,
		LineDiversity:     lineDiversity(text),
		DominantWordRatio: sum.DominantWordRatio / k,
		Windows:           len(windows),
	}
}

// sampleWindows cuts up to maxWindows evenly spaced windows of about size
// runes. Window edges are moved onto line breaks when one is in reach, so a
// window holds whole lines rather than fragments.
func sampleWindows(text string, size, maxWindows int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	if maxWindows <= 0 {
		maxWindows = 1
	}

	count := len(runes) / size
	if count > maxWindows {
		count = maxWindows
	}
	stride := (len(runes) - size) / max(count-1, 1)

	windows := make([]string, 0, count)
	for i := 0; i < count; i++ {
		start, end := lineAligned(runes, i*stride, i*stride+size)
		windows = append(windows, string(runes[start:end]))
	}
	return windows
}

// lineAligned moves start forward past the next line break and end back to
// the last line break inside [start, end). Either edge stays put when no
// break is found, which keeps windows over a single long line non-empty.
func lineAligned(runes []rune, start, end int) (int, int) {
	s := start
	if s > 0 && runes[s-1] != '\n' {
		for j := s; j < end; j++ {
			if runes[j] == '\n' {
				s = j + 1
				break
			}
		}
	}
	e := end
	if e < len(runes) && runes[e] != '\n' {
		for j := e - 1; j > s; j-- {
			if runes[j] == '\n' {
				e = j
				break
			}
		}
	}
	if e <= s {
		return start, end
	}
	return s, e
}

func windowSignals(text string, th Thresholds) ShapeSignals {
	return ShapeSignals{
		Entropy:           charEntropy(text),
		RepetitionScore:   repetition(text, th.MinWordLen),
		DominantWordRatio: dominantWordRatio(text, th.MinWordLen, th.DominantTopWords),
	}
}

// charEntropy is the Shannon entropy, in bits, of the rune distribution.
func charEntropy(text string) float64 {
	counts := make(map[rune]int)
	n := 0
	for _, r := range text {
		counts[r]++
		n++
	}
	if n == 0 {
		return 0
	}

	var h float64
	for _, c := range counts {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}

func words(text string, minLen int) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minLen {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

// repetition is 1 - unique/total over length-filtered, lower-cased words.
func repetition(text string, minLen int) float64 {
	ws := words(text, minLen)
	if len(ws) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		unique[w] = struct{}{}
	}
	return 1 - float64(len(unique))/float64(len(ws))
}

// lineDiversity is unique/total over non-blank, trimmed lines.
func lineDiversity(text string) float64 {
	total := 0
	unique := make(map[string]struct{})
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		total++
		unique[line] = struct{}{}
	}
	if total == 0 {
		return 0
	}
	return float64(len(unique)) / float64(total)
}

// dominantWordRatio is the share of words taken by the top most frequent ones.
func dominantWordRatio(text string, minLen, top int) float64 {
	ws := words(text, minLen)
	if len(ws) == 0 {
		return 0
	}
	counts := make(map[string]int)
	for _, w := range ws {
		counts[w]++
	}
	freq := make([]int, 0, len(counts))
	for _, c := range counts {
		freq = append(freq, c)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(freq)))

	sum := 0
	for i := 0; i < len(freq) && i < top; i++ {
		sum += freq[i]
	}
	return float64(sum) / float64(len(ws))
}
