package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

// Sink plays one buffer and returns after its duration has elapsed.
type Sink interface {
	Play(ctx context.Context, buf synth.Buffer) error
}

// chimeNotes is C6, E6, G6
var chimeNotes = []int{1047, 1319, 1568}

// Sequencer plays elements one after another on a sink.
type Sequencer struct {
	sink  Sink
	synth *synth.Synthesizer
	log   *slog.Logger
}

// NewSequencer creates a sequencer. A nil logger uses slog.Default().
func NewSequencer(sink Sink, s *synth.Synthesizer, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{sink: sink, synth: s, log: logger.With("component", "sequencer")}
}

// Play blocks until every element has played or ctx ends. A failing element
// aborts the rest of the sequence.
func (q *Sequencer) Play(ctx context.Context, elements ...Element) error {
	for i, el := range elements {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch e := el.(type) {
		case Tone:
			err = q.playTone(ctx, e)
		case Silence:
			err = wait(ctx, e.Length)
		case Chime:
			err = q.playChime(ctx)
		default:
			err = fmt.Errorf("unknown playback element %T", el)
		}
		if err != nil {
			q.log.Debug("sequence aborted", "index", i, "error", err)
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

func (q *Sequencer) playTone(ctx context.Context, t Tone) error {
	buf, err := q.synth.Render(t.Pattern, t.Frequency, t.Timing)
	if err != nil {
		return err
	}
	return q.sink.Play(ctx, buf)
}

func (q *Sequencer) playChime(ctx context.Context) error {
	note := ChimeDuration / time.Duration(len(chimeNotes))
	for _, f := range chimeNotes {
		buf, err := q.synth.ToneBurst(f, note)
		if err != nil {
			return err
		}
		if err := q.sink.Play(ctx, buf); err != nil {
			return err
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
