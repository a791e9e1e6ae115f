// Package cw holds the Morse code table, symbol handling and the timing model
// shared by the synthesizer and the key detector.
package cw

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// Canonical and display glyphs for the two Morse elements and the gaps
// that may appear in a pattern string.
const (
	Dit = '.'
	Dah = '-'

	DitDisplay = '•'
	DahDisplay = '—'

	// CharGap separates characters inside a pattern (one inter-character gap).
	CharGap = ' '
	// WordGap separates words inside a pattern (one inter-word gap).
	WordGap = '/'
)

var (
	// ErrEmptyPattern indicates a pattern with no glyphs
	ErrEmptyPattern = errors.New("pattern is empty")
	// ErrInvalidGlyph indicates a pattern contains something other than dits, dahs and gaps
	ErrInvalidGlyph = errors.New("pattern contains an invalid glyph")
)

// codeTable maps each glyph to its canonical dot-dash string.
// Prosigns are written in angle brackets so they never collide with letter pairs.
var codeTable = map[string]string{
	"A": ".-", "B": "-...", "C": "-.-.", "D": "-..", "E": ".",
	"F": "..-.", "G": "--.", "H": "....", "I": "..", "J": ".---",
	"K": "-.-", "L": ".-..", "M": "--", "N": "-.", "O": "---",
	"P": ".--.", "Q": "--.-", "R": ".-.", "S": "...", "T": "-",
	"U": "..-", "V": "...-", "W": ".--", "X": "-..-", "Y": "-.--",
	"Z": "--..",

	"0": "-----", "1": ".----", "2": "..---", "3": "...--", "4": "....-",
	"5": ".....", "6": "-....", "7": "--...", "8": "---..", "9": "----.",

	".": ".-.-.-", ",": "--..--", "?": "..--..", "'": ".----.",
	"!": "-.-.--", "/": "-..-.", "(": "-.--.", ")": "-.--.-",
	"&": ".-...", ":": "---...", ";": "-.-.-.", "=": "-...-",
	"-": "-....-", "_": "..--.-", "\"": ".-..-.", "@": ".--.-.",

	"<AR>":  ".-.-.",
	"<SK>":  "...-.-",
	"<BK>":  "-...-.-",
	"<SOS>": "...---...",
}

// decodeTable is the inverse of codeTable. The table is a bijection, so
// inverting loses nothing.
var decodeTable = lo.Invert(codeTable)

// Glyphs returns every glyph in the code table.
func Glyphs() []string {
	return lo.Keys(codeTable)
}

// Encode returns the canonical dot-dash string for a glyph.
// Letters are matched case-insensitively.
func Encode(glyph string) (string, bool) {
	code, ok := codeTable[strings.ToUpper(glyph)]
	return code, ok
}

// Decode looks up a dot-dash pattern. Display and variant symbols are
// accepted. Returns false when the pattern is not in the table.
func Decode(pattern string) (string, bool) {
	glyph, ok := decodeTable[Normalize(pattern)]
	return glyph, ok
}

// EncodeText converts text into a renderable pattern: characters separated by
// CharGap and words separated by WordGap. Characters missing from the table
// are skipped.
func EncodeText(text string) string {
	var words []string
	for _, word := range strings.Fields(strings.ToUpper(text)) {
		var codes []string
		for _, r := range word {
			if code, ok := codeTable[string(r)]; ok {
				codes = append(codes, code)
			}
		}
		if len(codes) > 0 {
			words = append(words, strings.Join(codes, string(CharGap)))
		}
	}
	return strings.Join(words, string(WordGap))
}

// IsDit reports whether r is any accepted dit symbol.
func IsDit(r rune) bool {
	switch r {
	case '.', '·', '•':
		return true
	}
	return false
}

// IsDah reports whether r is any accepted dah symbol.
func IsDah(r rune) bool {
	switch r {
	case '-', '−', '–', '—':
		return true
	}
	return false
}

// Normalize rewrites dit and dah variants to '.' and '-'. Other runes pass through.
func Normalize(pattern string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case IsDit(r):
			return Dit
		case IsDah(r):
			return Dah
		}
		return r
	}, pattern)
}

// Display rewrites a pattern with the bullet and em dash used on screen.
func Display(pattern string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case IsDit(r):
			return DitDisplay
		case IsDah(r):
			return DahDisplay
		}
		return r
	}, pattern)
}
