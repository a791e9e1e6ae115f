// Package playback sequences synthesized audio onto an output sink.
package playback

import (
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
)

// ChimeDuration is the length of the success chime
const ChimeDuration = 1200 * time.Millisecond

// Element is one step of a playback sequence: Tone, Silence or Chime.
type Element interface {
	Duration() time.Duration
	element()
}

// Tone plays a dot-dash pattern.
type Tone struct {
	Pattern   string
	Frequency int
	Timing    cw.Timing
}

// Duration returns the pattern's natural length, or zero if the pattern is invalid.
func (t Tone) Duration() time.Duration {
	d, err := cw.PatternDuration(t.Pattern, t.Timing)
	if err != nil {
		return 0
	}
	return d
}

// Silence pauses for Length.
type Silence struct {
	Length time.Duration
}

func (s Silence) Duration() time.Duration {
	return s.Length
}

// Chime is a short rising arpeggio marking a correct answer.
type Chime struct{}

func (Chime) Duration() time.Duration {
	return ChimeDuration
}

func (Tone) element()    {}
func (Silence) element() {}
func (Chime) element()   {}

// TotalDuration sums the durations of elements.
func TotalDuration(elements ...Element) time.Duration {
	var total time.Duration
	for _, e := range elements {
		total += e.Duration()
	}
	return total
}
