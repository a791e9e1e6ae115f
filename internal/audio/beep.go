package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

var (
	speakerMu   sync.Mutex
	speakerRate beep.SampleRate
)

// initSpeaker initializes the process-wide speaker once.
func initSpeaker(rate beep.SampleRate, latency time.Duration) (beep.SampleRate, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()

	if speakerRate != 0 {
		return speakerRate, nil
	}
	if err := speaker.Init(rate, rate.N(latency)); err != nil {
		return 0, fmt.Errorf("init speaker: %w", err)
	}
	speakerRate = rate
	return rate, nil
}

// BeepSink plays buffers through the beep speaker mixer. It satisfies the same
// contract as Player; buffers at another rate are resampled.
type BeepSink struct {
	rate beep.SampleRate
	log  *slog.Logger

	mu sync.Mutex // one pattern at a time

	loopMu      sync.Mutex
	loop        *sampleStreamer
	loopCtrl    *beep.Ctrl
	loopSamples []int16
}

// NewBeepSink initializes the speaker at sampleRate with the given mixer latency.
func NewBeepSink(sampleRate int, latency time.Duration, logger *slog.Logger) (*BeepSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if latency <= 0 {
		latency = 100 * time.Millisecond
	}
	rate, err := initSpeaker(beep.SampleRate(sampleRate), latency)
	if err != nil {
		return nil, err
	}
	return &BeepSink{rate: rate, log: logger.With("component", "beep")}, nil
}

// Play queues buf on the mixer and returns once it has drained and its
// duration has elapsed, or when ctx ends.
func (b *BeepSink) Play(ctx context.Context, buf synth.Buffer) error {
	if buf.Len() == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	s := newSampleStreamer(buf.Samples, false)
	done := make(chan struct{})
	speaker.Play(beep.Seq(b.resample(s, buf.SampleRate), beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
	case <-ctx.Done():
		speaker.Lock()
		s.stop()
		speaker.Unlock()
		return ctx.Err()
	}

	if rem := time.Until(start.Add(buf.Duration())); rem > 0 {
		timer := time.NewTimer(rem)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// StartLoop plays buf repeatedly until StopLoop. Resuming the same buffer
// unpauses the streamer already on the mixer; a different buffer replaces it.
func (b *BeepSink) StartLoop(buf synth.Buffer) error {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()

	if b.loop != nil && sameSamples(b.loopSamples, buf.Samples) {
		speaker.Lock()
		b.loopCtrl.Paused = false
		speaker.Unlock()
		return nil
	}
	b.stopLoopLocked()

	s := newSampleStreamer(buf.Samples, true)
	ctrl := &beep.Ctrl{Streamer: b.resample(s, buf.SampleRate)}
	speaker.Play(ctrl)
	b.loop = s
	b.loopCtrl = ctrl
	b.loopSamples = buf.Samples
	return nil
}

// StopLoop pauses the loop and rewinds it, leaving it on the mixer for the
// next StartLoop. Stopping when idle is a no-op.
func (b *BeepSink) StopLoop() error {
	b.loopMu.Lock()
	defer b.loopMu.Unlock()
	if b.loop == nil {
		return nil
	}
	speaker.Lock()
	b.loopCtrl.Paused = true
	b.loop.rewind()
	speaker.Unlock()
	return nil
}

func (b *BeepSink) stopLoopLocked() {
	if b.loop == nil {
		return
	}
	speaker.Lock()
	b.loop.stop()
	speaker.Unlock()
	b.loop = nil
	b.loopCtrl = nil
	b.loopSamples = nil
}

// Close ends the loop and clears anything still queued on the mixer.
func (b *BeepSink) Close() error {
	b.loopMu.Lock()
	b.stopLoopLocked()
	b.loopMu.Unlock()
	speaker.Clear()
	return nil
}

func (b *BeepSink) resample(s beep.Streamer, from int) beep.Streamer {
	if beep.SampleRate(from) == b.rate {
		return s
	}
	b.log.Debug("resampling", "from", from, "to", int(b.rate))
	return beep.Resample(4, beep.SampleRate(from), b.rate, s)
}

// sampleStreamer adapts mono int16 samples to beep's stereo float frames.
// It is only touched under the speaker lock once playing.
type sampleStreamer struct {
	samples []int16
	pos     int
	loop    bool
}

func newSampleStreamer(samples []int16, loop bool) *sampleStreamer {
	return &sampleStreamer{samples: samples, loop: loop}
}

func (s *sampleStreamer) Stream(frames [][2]float64) (int, bool) {
	if len(s.samples) == 0 {
		return 0, false
	}
	for i := range frames {
		if s.pos >= len(s.samples) {
			if !s.loop {
				return i, i > 0
			}
			s.pos = 0
		}
		v := float64(s.samples[s.pos]) / 32768
		frames[i][0] = v
		frames[i][1] = v
		s.pos++
	}
	return len(frames), true
}

func (s *sampleStreamer) Err() error {
	return nil
}

func (s *sampleStreamer) rewind() {
	s.pos = 0
}

// stop makes the streamer report end of stream on its next call.
func (s *sampleStreamer) stop() {
	s.loop = false
	s.pos = len(s.samples)
}
