package keyer

import (
	"slices"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
)

// Event is one completed character.
type Event struct {
	// Pattern uses the standard '.' and '-' glyphs
	Pattern string
	// Elements holds the held duration of each glyph, in order
	Elements []time.Duration
	// Character is the decoded glyph, empty when Recognized is false
	Character  string
	Recognized bool
}

func newEvent(pattern string, elements []time.Duration) Event {
	char, ok := cw.Decode(pattern)
	return Event{
		Pattern:    pattern,
		Elements:   slices.Clone(elements),
		Character:  char,
		Recognized: ok,
	}
}

// Display returns the pattern with display glyphs, e.g. "•—".
func (e Event) Display() string {
	return cw.Display(e.Pattern)
}

// String renders the event as "•— = A", or "•— = ?" when unrecognized.
func (e Event) String() string {
	if !e.Recognized {
		return e.Display() + " = ?"
	}
	return e.Display() + " = " + e.Character
}
