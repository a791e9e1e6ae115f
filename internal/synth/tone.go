package synth

import (
	"fmt"
	"math"
	"time"
)

// ToneConfig holds configuration for continuous sidetone loops.
type ToneConfig struct {
	// SampleRate of the loop buffer in Hz
	SampleRate int
	// Span is the approximate loop length (from config: loop_span_ms)
	Span time.Duration
	// Amplitude as a fraction of full scale
	Amplitude float64
}

// DefaultToneConfig returns a half-second loop at 60% of full scale.
func DefaultToneConfig() ToneConfig {
	return ToneConfig{
		SampleRate: 44100,
		Span:       500 * time.Millisecond,
		Amplitude:  0.6,
	}
}

// ToneGenerator builds sine buffers that loop without a phase jump.
type ToneGenerator struct {
	config ToneConfig
}

// NewToneGenerator validates cfg and returns a generator.
func NewToneGenerator(cfg ToneConfig) (*ToneGenerator, error) {
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.Amplitude <= 0 || cfg.Amplitude > 1 {
		return nil, ErrInvalidAmplitude
	}
	if cfg.Span <= 0 {
		cfg.Span = DefaultToneConfig().Span
	}
	return &ToneGenerator{config: cfg}, nil
}

// Config returns the current configuration
func (g *ToneGenerator) Config() ToneConfig {
	return g.config
}

// LoopCycles returns how many whole sine cycles a loop at frequencyHz contains.
func (g *ToneGenerator) LoopCycles(frequencyHz int) int {
	cycles := int(math.Round(float64(frequencyHz) * g.config.Span.Seconds()))
	return max(cycles, 1)
}

// BuildLoop returns a buffer holding a whole number of cycles at frequencyHz,
// so that sample N wraps to sample 0 at the same phase.
func (g *ToneGenerator) BuildLoop(frequencyHz int) (Buffer, error) {
	rate := g.config.SampleRate
	if frequencyHz <= 0 || frequencyHz*2 >= rate {
		return Buffer{}, fmt.Errorf("%w: %d Hz at %d Hz", ErrInvalidFrequency, frequencyHz, rate)
	}

	cycles := g.LoopCycles(frequencyHz)
	n := int(math.Round(float64(cycles) * float64(rate) / float64(frequencyHz)))

	samples := make([]int16, n)
	step := 2 * math.Pi * float64(cycles) / float64(n)
	for i := range samples {
		samples[i] = int16(math.Sin(step*float64(i)) * math.MaxInt16 * g.config.Amplitude)
	}
	return Buffer{Samples: samples, SampleRate: rate}, nil
}
