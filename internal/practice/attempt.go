// Package practice drills the user on targets and scores what they key back.
package practice

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/keyer"
)

// Attempt is the user's answer to one target.
type Attempt struct {
	Target   string
	Expected string // dits and dahs only, gaps removed
	Got      string
	// Character is the decoded glyph, empty for multi-character or unrecognized input
	Character string
	Elements  []time.Duration
	Correct   bool
	// TimedOut is set when nothing was keyed before the answer deadline
	TimedOut bool
}

// ExpectedPattern returns the elements the user must key for target, with
// character and word gaps removed since the detector does not report them.
func ExpectedPattern(target string) string {
	return strings.Map(func(r rune) rune {
		if cw.IsGap(r) {
			return -1
		}
		return r
	}, cw.EncodeText(target))
}

// Grade compares a detector event against target.
func Grade(target string, ev keyer.Event) Attempt {
	expected := ExpectedPattern(target)
	return Attempt{
		Target:    target,
		Expected:  expected,
		Got:       ev.Pattern,
		Character: ev.Character,
		Elements:  ev.Elements,
		Correct:   expected != "" && ev.Pattern == expected,
	}
}

// Missed records a target the user never answered.
func Missed(target string) Attempt {
	return Attempt{Target: target, Expected: ExpectedPattern(target), TimedOut: true}
}

// Score returns the fraction of attempts that were correct, or zero for none.
func Score(attempts []Attempt) float64 {
	if len(attempts) == 0 {
		return 0
	}
	correct := lo.CountBy(attempts, func(a Attempt) bool {
		return a.Correct
	})
	return float64(correct) / float64(len(attempts))
}

// Mistakes returns the targets that were answered wrongly or not at all.
func Mistakes(attempts []Attempt) []string {
	wrong := lo.Filter(attempts, func(a Attempt, _ int) bool {
		return !a.Correct
	})
	return lo.Uniq(lo.Map(wrong, func(a Attempt, _ int) string {
		return a.Target
	}))
}

// CompletionTimeout picks the character completion timeout for a target:
// letter for up to three single characters, phrase for anything longer.
func CompletionTimeout(target string, letter, phrase time.Duration) time.Duration {
	tokens := strings.Fields(target)
	if len(tokens) == 0 || len(tokens) > 3 {
		return phrase
	}
	for _, tok := range tokens {
		if len([]rune(tok)) != 1 {
			return phrase
		}
	}
	return letter
}
