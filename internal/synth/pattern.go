package synth

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
)

// PatternConfig holds configuration for the pattern synthesizer.
type PatternConfig struct {
	// SampleRate of rendered buffers in Hz (from config: playback_sample_rate)
	SampleRate int
	// Amplitude of each tone as a fraction of full scale
	Amplitude float64
	// MinDuration is the shortest buffer handed to an output device (from config: min_buffer_ms)
	MinDuration time.Duration
	// ShortElement is the length under which a tone uses ShortFade instead of LongFade
	ShortElement time.Duration
	// ShortFade and LongFade are the linear ramp lengths at each end of a tone
	ShortFade time.Duration
	LongFade  time.Duration
}

// DefaultPatternConfig returns the settings used for drilling and replay.
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		SampleRate:   44100,
		Amplitude:    0.5,
		MinDuration:  200 * time.Millisecond,
		ShortElement: 80 * time.Millisecond,
		ShortFade:    time.Millisecond,
		LongFade:     3 * time.Millisecond,
	}
}

// Synthesizer renders dot-dash patterns into complete PCM buffers.
// It holds no mutable state and is safe for concurrent use.
type Synthesizer struct {
	config PatternConfig
	log    *slog.Logger
}

// NewSynthesizer creates a synthesizer. A nil logger uses slog.Default().
func NewSynthesizer(cfg PatternConfig, logger *slog.Logger) (*Synthesizer, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Amplitude <= 0 || cfg.Amplitude > 1 {
		return nil, ErrInvalidAmplitude
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{config: cfg, log: logger.With("component", "synth")}, nil
}

// Config returns the current configuration
func (s *Synthesizer) Config() PatternConfig {
	return s.config
}

// Render synthesizes pattern at frequencyHz using timing. The buffer is sized from
// cw.PatternDuration; elements are written left to right with gaps left silent, and
// buffers shorter than MinDuration are padded with trailing silence.
func (s *Synthesizer) Render(pattern string, frequencyHz int, timing cw.Timing) (Buffer, error) {
	if frequencyHz <= 0 || frequencyHz*2 >= s.config.SampleRate {
		return Buffer{}, fmt.Errorf("%w: %d Hz at %d Hz", ErrInvalidFrequency, frequencyHz, s.config.SampleRate)
	}

	total, err := cw.PatternDuration(pattern, timing)
	if err != nil {
		return Buffer{}, fmt.Errorf("render %q: %w", pattern, err)
	}

	samples := make([]int16, samplesFor(total, s.config.SampleRate))
	if written, truncated := s.fill(samples, pattern, frequencyHz, timing); truncated {
		s.log.Warn("pattern overflowed buffer, truncating",
			"pattern", pattern, "offset", written, "capacity", len(samples))
	}

	if minSamples := samplesFor(s.config.MinDuration, s.config.SampleRate); len(samples) < minSamples {
		s.log.Debug("short pattern padded",
			"pattern", pattern, "natural", total, "padded_to", s.config.MinDuration)
		samples = append(samples, make([]int16, minSamples-len(samples))...)
	}

	return Buffer{Samples: samples, SampleRate: s.config.SampleRate}, nil
}

// ToneBurst renders a single enveloped tone of length d with no padding.
func (s *Synthesizer) ToneBurst(frequencyHz int, d time.Duration) (Buffer, error) {
	if frequencyHz <= 0 || frequencyHz*2 >= s.config.SampleRate {
		return Buffer{}, fmt.Errorf("%w: %d Hz at %d Hz", ErrInvalidFrequency, frequencyHz, s.config.SampleRate)
	}
	samples := make([]int16, samplesFor(d, s.config.SampleRate))
	s.tone(samples, frequencyHz)
	return Buffer{Samples: samples, SampleRate: s.config.SampleRate}, nil
}

// fill walks the pattern writing tones into buf. It stops at the first element
// that would not fit and reports the offset reached.
func (s *Synthesizer) fill(buf []int16, pattern string, frequencyHz int, timing cw.Timing) (int, bool) {
	rate := s.config.SampleRate
	intra := samplesFor(timing.IntraGap, rate)
	offset := 0

	for _, r := range pattern {
		d, err := timing.Element(r)
		if err != nil {
			return offset, true
		}
		n := samplesFor(d, rate)

		if cw.IsGap(r) {
			offset += n
			if offset > len(buf) {
				return len(buf), true
			}
			continue
		}

		if offset+n > len(buf) {
			return offset, true
		}
		s.tone(buf[offset:offset+n], frequencyHz)
		offset += n + intra
		if offset > len(buf) {
			return len(buf), true
		}
	}
	return offset, false
}

// tone writes one enveloped sine segment. Phase starts at zero for every segment.
func (s *Synthesizer) tone(seg []int16, frequencyHz int) {
	rate := s.config.SampleRate
	n := len(seg)

	fade := samplesFor(s.config.LongFade, rate)
	if n < samplesFor(s.config.ShortElement, rate) {
		fade = samplesFor(s.config.ShortFade, rate)
	}
	fade = min(fade, n/4)

	step := 2 * math.Pi * float64(frequencyHz) / float64(rate)
	for i := range seg {
		amp := s.config.Amplitude
		if fade > 0 {
			if i < fade {
				amp *= float64(i) / float64(fade)
			}
			if i > n-fade {
				amp *= float64(n-i) / float64(fade)
			}
		}
		seg[i] = int16(math.Sin(step*float64(i)) * math.MaxInt16 * amp)
	}
}
