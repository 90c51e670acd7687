package loadertest

import (
	"math/rand"
	"strings"
)

var syllables = []string{
	"ka", "lo", "mer", "sta", "tri", "vel", "on", "dra", "pu", "zen",
	"qi", "bor", "an", "el", "ish", "ter", "gal", "mo", "ru", "fen",
	"dal", "sor", "nik", "pra", "ul", "yen", "cor", "vis", "ham", "lot",
}

// Prose returns about n characters of varied, readable pseudo-text wrapped at
// roughly seventy columns. The same seed always yields the same text.
func Prose(seed int64, n int) string {
	rng := rand.New(rand.NewSource(seed))

	var b strings.Builder
	lineLen := 0
	startSentence := true
	wordsLeft := 0

	for b.Len() < n {
		if wordsLeft == 0 {
			wordsLeft = 6 + rng.Intn(9)
		}

		var w strings.Builder
		for i := 0; i < 1+rng.Intn(4); i++ {
			w.WriteString(syllables[rng.Intn(len(syllables))])
		}
		word := w.String()
		if startSentence {
			word = strings.ToUpper(word[:1]) + word[1:]
			startSentence = false
		}
		wordsLeft--
		if wordsLeft == 0 {
			word += "."
			startSentence = true
		}

		if lineLen > 0 && lineLen+1+len(word) > 70 {
			b.WriteByte('\n')
			lineLen = 0
		} else if lineLen > 0 {
			b.WriteByte(' ')
			lineLen++
		}
		b.WriteString(word)
		lineLen += len(word)
	}

	return b.String()
}

// Lines splits text into lines, for feeding BuildPDF.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}
