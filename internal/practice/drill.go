package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/keyer"
	"github.com/ColonelBlimp/keytrainer/internal/playback"
)

var (
	ErrNoTargets     = errors.New("no drill targets")
	ErrInvalidPoll   = errors.New("completion poll interval must be positive")
	ErrInvalidAnswer = errors.New("answer timeout must be positive")
)

// Detector is the part of the key detector a drill needs.
type Detector interface {
	Reset()
	CheckCompletion(timeout time.Duration) (keyer.Event, bool)
}

// Player plays a sequence of elements and returns when they have finished.
type Player interface {
	Play(ctx context.Context, elements ...playback.Element) error
}

// DrillConfig holds drill settings
type DrillConfig struct {
	Frequency     int
	Timing        cw.Timing
	LetterTimeout time.Duration // from config: letter_timeout_ms
	PhraseTimeout time.Duration // from config: phrase_timeout_ms
	Poll          time.Duration // from config: completion_poll_ms
	// AnswerTimeout is how long to wait for the user to start keying
	AnswerTimeout time.Duration
	Logger        *slog.Logger
}

// Result summarizes a finished drill
type Result struct {
	Attempts []Attempt
	Score    float64
	// WPM is the estimated sending speed, zero if nothing was keyed
	WPM int
}

// Drill plays each target, waits for the user to key it back and grades the answer.
type Drill struct {
	config DrillConfig
	player Player
	det    Detector
	speed  *cw.SpeedEstimator
	log    *slog.Logger

	// OnAttempt, if set, is called after each graded target
	OnAttempt func(Attempt)
}

// NewDrill validates cfg and returns a drill
func NewDrill(cfg DrillConfig, player Player, det Detector) (*Drill, error) {
	if cfg.Poll <= 0 {
		return nil, ErrInvalidPoll
	}
	if cfg.AnswerTimeout <= 0 {
		return nil, ErrInvalidAnswer
	}
	speed, err := cw.NewSpeedEstimator(cfg.Timing, cw.DefaultSpeedSmoothing)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Drill{
		config: cfg,
		player: player,
		det:    det,
		speed:  speed,
		log:    cfg.Logger.With("component", "drill"),
	}, nil
}

// Run drills every target in order. Cancelling ctx ends the drill early and
// returns the attempts made so far along with the context error.
func (d *Drill) Run(ctx context.Context, targets []string) (Result, error) {
	if len(targets) == 0 {
		return Result{}, ErrNoTargets
	}

	var attempts []Attempt
	for _, target := range targets {
		a, err := d.runTarget(ctx, target)
		if err != nil {
			return d.result(attempts), err
		}
		attempts = append(attempts, a)
		if d.OnAttempt != nil {
			d.OnAttempt(a)
		}
	}
	return d.result(attempts), nil
}

func (d *Drill) runTarget(ctx context.Context, target string) (Attempt, error) {
	pattern := cw.EncodeText(target)
	if pattern == "" {
		return Attempt{}, fmt.Errorf("target %q has no Morse encoding", target)
	}

	prompt := playback.Tone{Pattern: pattern, Frequency: d.config.Frequency, Timing: d.config.Timing}
	if err := d.player.Play(ctx, prompt); err != nil {
		return Attempt{}, fmt.Errorf("play %q: %w", target, err)
	}

	d.det.Reset()
	timeout := CompletionTimeout(target, d.config.LetterTimeout, d.config.PhraseTimeout)
	ev, ok, err := d.await(ctx, timeout)
	if err != nil {
		return Attempt{}, err
	}
	if !ok {
		d.log.Info("no answer", "target", target)
		return Missed(target), nil
	}

	a := Grade(target, ev)
	d.speed.ObserveAll(ev.Elements)
	d.log.Info("attempt", "target", target, "expected", a.Expected, "got", a.Got, "correct", a.Correct)

	if a.Correct {
		if err := d.player.Play(ctx, playback.Chime{}); err != nil {
			return a, fmt.Errorf("chime: %w", err)
		}
	}
	return a, nil
}

// await polls the detector until a character completes or the answer deadline
// passes. The deadline only limits the wait for keying to begin plus the
// completion timeout itself.
func (d *Drill) await(ctx context.Context, timeout time.Duration) (keyer.Event, bool, error) {
	ticker := time.NewTicker(d.config.Poll)
	defer ticker.Stop()

	deadline := time.NewTimer(d.config.AnswerTimeout + timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return keyer.Event{}, false, ctx.Err()
		case <-deadline.C:
			ev, ok := d.det.CheckCompletion(timeout)
			return ev, ok, nil
		case <-ticker.C:
			if ev, ok := d.det.CheckCompletion(timeout); ok {
				return ev, true, nil
			}
		}
	}
}

func (d *Drill) result(attempts []Attempt) Result {
	r := Result{Attempts: attempts, Score: Score(attempts)}
	if d.speed.Samples() > 0 {
		r.WPM = d.speed.WPM()
	}
	return r
}
