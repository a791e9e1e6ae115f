package cw

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Morse code timing ratios (ITU standard)
const (
	// DahDitRatio is the ratio of dah duration to dit duration
	DahDitRatio = 3
	// IntraCharSpaceRatio is the gap between elements of one character, in dits
	IntraCharSpaceRatio = 1
	// InterCharSpaceRatio is the gap between characters, in dits
	InterCharSpaceRatio = 3
	// WordSpaceRatio is the gap between words, in dits
	WordSpaceRatio = 7

	// DitDahBoundary is the held duration, in dits, at which a press stops being a dit.
	// Equality classifies as a dah.
	DitDahBoundary = 1.5

	// MillisecondsPerWord is the PARIS standard: 50 dit units per word, 60000 ms per minute.
	MillisecondsPerWord = 1200.0

	// MaxWPM is the highest speed whose dit still rounds to at least one millisecond.
	MaxWPM = 2400
)

// ErrInvalidWPM indicates WPM must be between 1 and MaxWPM
var ErrInvalidWPM = errors.New("WPM must be positive and no greater than 2400")

// Timing holds canonical element durations for one WPM setting.
// Values are whole milliseconds. A Timing is never mutated; compute a new one
// when the speed changes and hand the same value to synthesis and detection.
type Timing struct {
	WPM          int
	Dit          time.Duration
	Dah          time.Duration
	IntraGap     time.Duration
	InterCharGap time.Duration
	InterWordGap time.Duration
}

// ComputeTiming derives element durations from a WPM speed.
func ComputeTiming(wpm int) (Timing, error) {
	if wpm <= 0 || wpm > MaxWPM {
		return Timing{}, fmt.Errorf("%w: got %d", ErrInvalidWPM, wpm)
	}

	ditMs := int64(math.Round(MillisecondsPerWord / float64(wpm)))
	dit := time.Duration(ditMs) * time.Millisecond

	return Timing{
		WPM:          wpm,
		Dit:          dit,
		Dah:          DahDitRatio * dit,
		IntraGap:     IntraCharSpaceRatio * dit,
		InterCharGap: InterCharSpaceRatio * dit,
		InterWordGap: WordSpaceRatio * dit,
	}, nil
}

// MustTiming is ComputeTiming for constant speeds known to be valid.
func MustTiming(wpm int) Timing {
	t, err := ComputeTiming(wpm)
	if err != nil {
		panic(err)
	}
	return t
}

// DitMax is the held duration from which a press is classified as a dah.
func (t Timing) DitMax() time.Duration {
	return time.Duration(float64(t.Dit) * DitDahBoundary)
}

// Classify returns Dit for durations strictly below DitMax and Dah otherwise.
func (t Timing) Classify(held time.Duration) rune {
	if held < t.DitMax() {
		return Dit
	}
	return Dah
}

// Element returns the duration contributed by a single pattern glyph, not counting
// the intra-character gap that follows dits and dahs.
func (t Timing) Element(r rune) (time.Duration, error) {
	switch {
	case IsDit(r):
		return t.Dit, nil
	case IsDah(r):
		return t.Dah, nil
	case r == CharGap:
		return t.InterCharGap, nil
	case r == WordGap:
		return t.InterWordGap, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidGlyph, r)
}

// IsGap reports whether r is a gap glyph rather than a sounding element.
func IsGap(r rune) bool {
	return r == CharGap || r == WordGap
}

// PatternDuration sums the audible length of a pattern: each element, an
// intra-character gap after every dit or dah, and a trailing inter-character gap.
func PatternDuration(pattern string, t Timing) (time.Duration, error) {
	if pattern == "" {
		return 0, ErrEmptyPattern
	}
	if t.Dit <= 0 {
		return 0, ErrInvalidWPM
	}

	var total time.Duration
	for _, r := range pattern {
		d, err := t.Element(r)
		if err != nil {
			return 0, err
		}
		total += d
		if !IsGap(r) {
			total += t.IntraGap
		}
	}
	return total + t.InterCharGap, nil
}
