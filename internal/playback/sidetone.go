package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/recovery"
	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

// LoopSink plays a buffer repeatedly until stopped.
type LoopSink interface {
	StartLoop(buf synth.Buffer) error
	StopLoop() error
}

// Sidetone sounds a continuous tone while the key is held.
type Sidetone struct {
	sink LoopSink
	gen  *synth.ToneGenerator
	log  *slog.Logger

	mu        sync.Mutex
	frequency int
	loop      synth.Buffer
	playing   bool
}

// NewSidetone creates a sidetone. A nil logger uses slog.Default().
func NewSidetone(sink LoopSink, gen *synth.ToneGenerator, logger *slog.Logger) *Sidetone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sidetone{sink: sink, gen: gen, log: logger.With("component", "sidetone")}
}

// Start plays the tone at frequencyHz. Starting again at the same frequency
// repeats the play request; a new frequency rebuilds the loop first.
func (s *Sidetone) Start(frequencyHz int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frequencyHz != s.frequency || s.loop.Len() == 0 {
		loop, err := s.gen.BuildLoop(frequencyHz)
		if err != nil {
			return err
		}
		if s.playing {
			if err := s.sink.StopLoop(); err != nil {
				s.log.Warn("stop previous loop", "error", err)
			}
			s.playing = false
		}
		s.loop = loop
		s.frequency = frequencyHz
		s.log.Debug("sidetone rebuilt", "frequency", frequencyHz, "samples", loop.Len())
	}

	if err := s.sink.StartLoop(s.loop); err != nil {
		s.playing = false
		return fmt.Errorf("start sidetone: %w", err)
	}
	s.playing = true
	return nil
}

// Stop silences the tone. Stopping when silent is a no-op.
func (s *Sidetone) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return nil
	}
	s.playing = false
	if err := s.sink.StopLoop(); err != nil {
		return fmt.Errorf("stop sidetone: %w", err)
	}
	return nil
}

// Playing reports whether the tone is sounding
func (s *Sidetone) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Follow returns a key transition handler that sounds the tone while the key
// is down, and a release func that stops the tone and waits for the worker.
// The handler only records the latest key state and never waits on the output
// device; a worker goroutine applies it, so it is safe on the capture goroutine.
func (s *Sidetone) Follow(ctx context.Context, frequencyHz int) (func(down bool, at time.Time), func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	wake := make(chan struct{}, 1)
	var down atomic.Bool

	go func() {
		defer close(done)
		defer recovery.HandlePanicFunc(nil)

		applied := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-wake:
			}
			want := down.Load()
			if want == applied {
				continue
			}
			var err error
			if want {
				err = s.Start(frequencyHz)
			} else {
				err = s.Stop()
			}
			if err != nil {
				s.log.Warn("sidetone", "error", err)
			}
			applied = want
		}
	}()

	handler := func(d bool, _ time.Time) {
		down.Store(d)
		select {
		case wake <- struct{}{}:
		default:
		}
	}
	release := func() {
		cancel()
		<-done
		if err := s.Stop(); err != nil {
			s.log.Warn("sidetone", "error", err)
		}
	}
	return handler, release
}
