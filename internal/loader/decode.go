package loader

import (
	"bytes"
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/unicode/norm"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// fallbackCharsets are tried, in order, when bytes are not valid UTF-8.
// Ties keep the earlier entry.
var fallbackCharsets = []struct {
	name string
	enc  encoding.Encoding
}{
	{"windows-1251", charmap.Windows1251},
	{"koi8-r", charmap.KOI8R},
	{"windows-1252", charmap.Windows1252},
}

// mojibakeCharsets are the single-byte encodings UTF-8 text is most often
// misread through before being saved again as UTF-8.
var mojibakeCharsets = []encoding.Encoding{
	charmap.Windows1252,
	charmap.Windows1251,
}

// Decoded is text recovered from raw bytes along with how it was recovered.
type Decoded struct {
	Text     string
	Charset  string
	Repaired bool
}

// DecodeText turns raw bytes of unknown encoding into NFC-normalised UTF-8.
func DecodeText(data []byte) (Decoded, error) {
	var (
		text    string
		charset string
	)

	switch {
	case bytes.HasPrefix(data, bomUTF8):
		text, charset = string(data[len(bomUTF8):]), "utf-8"
	case bytes.HasPrefix(data, bomUTF16LE), bytes.HasPrefix(data, bomUTF16BE):
		dec := xunicode.UTF16(xunicode.LittleEndian, xunicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return Decoded{}, fmt.Errorf("decode utf-16: %w", err)
		}
		text, charset = string(out), "utf-16"
	case utf8.Valid(data):
		text, charset = string(data), "utf-8"
	default:
		var err error
		text, charset, err = decodeSingleByte(data)
		if err != nil {
			return Decoded{}, err
		}
	}

	repaired := false
	if fixed, ok := repairMojibake(text); ok {
		text, repaired = fixed, true
	}

	return Decoded{
		Text:     norm.NFC.String(text),
		Charset:  charset,
		Repaired: repaired,
	}, nil
}

func decodeSingleByte(data []byte) (string, string, error) {
	bestScore := -1e9
	var bestText, bestName string
	for _, cs := range fallbackCharsets {
		out, err := cs.enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(out)
		if s := charsetScore(text); s > bestScore {
			bestScore, bestText, bestName = s, text, cs.name
		}
	}
	if bestName == "" {
		return "", "", errors.New("no charset could decode the input")
	}
	return bestText, bestName, nil
}

// charsetScore rates how much a decoding looks like natural text. Prose is
// mostly lowercase and keeps each word in one script; wrong code pages produce
// case-inverted Cyrillic, runs of accented Latin, or words mixing both.
func charsetScore(text string) float64 {
	var letters, lower, accented, words, mixed int
	var wordLatin, wordCyrillic bool

	endWord := func() {
		if wordLatin || wordCyrillic {
			words++
			if wordLatin && wordCyrillic {
				mixed++
			}
		}
		wordLatin, wordCyrillic = false, false
	}

	for _, r := range text {
		if !unicode.IsLetter(r) {
			endWord()
			continue
		}
		letters++
		if unicode.IsLower(r) {
			lower++
		}
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			wordCyrillic = true
		case unicode.Is(unicode.Latin, r):
			wordLatin = true
			if r > unicode.MaxASCII {
				accented++
			}
		}
	}
	endWord()

	if letters == 0 {
		return 0
	}
	score := float64(lower) / float64(letters)
	score -= 0.5 * float64(accented) / float64(letters)
	if words > 0 {
		score -= float64(mixed) / float64(words)
	}
	return score
}

// repairMojibake undoes the common "UTF-8 read as a single-byte code page"
// corruption. The round trip must produce different, valid UTF-8; genuine
// non-ASCII text never re-encodes into valid multi-byte sequences.
func repairMojibake(text string) (string, bool) {
	if isASCII(text) {
		return "", false
	}
	for _, enc := range mojibakeCharsets {
		raw, err := enc.NewEncoder().String(text)
		if err != nil {
			continue
		}
		if raw != text && utf8.ValidString(raw) {
			return raw, true
		}
	}
	return "", false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// Normalize applies mojibake repair and NFC normalisation to text that is
// already UTF-8, such as the contents of XML-based formats.
func Normalize(text string) string {
	if fixed, ok := repairMojibake(text); ok {
		text = fixed
	}
	return norm.NFC.String(text)
}
