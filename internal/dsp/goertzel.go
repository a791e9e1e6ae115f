// internal/dsp/goertzel.go
package dsp

import (
	"errors"
	"math"
)

var (
	// ErrInvalidBlockSize indicates block size must be positive
	ErrInvalidBlockSize = errors.New("block size must be positive")
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("target frequency must be positive and less than Nyquist frequency")
	// ErrInsufficientSamples indicates not enough samples for the configured block size
	ErrInsufficientSamples = errors.New("insufficient samples for block size")
)

// GoertzelConfig holds configuration for single-frequency magnitude measurement.
type GoertzelConfig struct {
	// TargetFrequency is the frequency to measure in Hz (from config: tone_frequency)
	TargetFrequency float64
	// SampleRate is the audio sample rate in Hz
	SampleRate float64
	// BlockSize is the number of samples per measurement window
	BlockSize int
}

// Goertzel computes the DFT magnitude of a single frequency bin. Rendered
// tones are checked with it to confirm their energy sits at the requested pitch.
type Goertzel struct {
	config      GoertzelConfig
	coefficient float64 // 2 * cos(2π * k / N)
	normalizer  float64 // 2 / N
}

// NewGoertzel creates a new Goertzel filter with the given configuration.
func NewGoertzel(cfg GoertzelConfig) (*Goertzel, error) {
	if cfg.BlockSize <= 0 {
		return nil, ErrInvalidBlockSize
	}
	if cfg.SampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	if cfg.TargetFrequency <= 0 || cfg.TargetFrequency >= cfg.SampleRate/2 {
		return nil, ErrInvalidFrequency
	}

	k := (cfg.TargetFrequency / cfg.SampleRate) * float64(cfg.BlockSize)
	omega := (2.0 * math.Pi * k) / float64(cfg.BlockSize)

	return &Goertzel{
		config:      cfg,
		coefficient: 2.0 * math.Cos(omega),
		normalizer:  2.0 / float64(cfg.BlockSize),
	}, nil
}

// Magnitude returns the normalized magnitude of the target frequency in the first
// BlockSize samples. A full-scale sine at the target frequency measures close to 1.0.
func (g *Goertzel) Magnitude(samples []float64) (float64, error) {
	if len(samples) < g.config.BlockSize {
		return 0, ErrInsufficientSamples
	}
	return g.run(func(i int) float64 { return samples[i] }), nil
}

// MagnitudePCM is Magnitude for 16-bit PCM, scaled so full scale is 1.0.
func (g *Goertzel) MagnitudePCM(samples []int16) (float64, error) {
	if len(samples) < g.config.BlockSize {
		return 0, ErrInsufficientSamples
	}
	return g.run(func(i int) float64 { return float64(samples[i]) / FullScale }), nil
}

func (g *Goertzel) run(sample func(int) float64) float64 {
	var s0, s1, s2 float64
	coeff := g.coefficient

	for i := 0; i < g.config.BlockSize; i++ {
		s0 = sample(i) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power) * g.normalizer
}

// Config returns the current configuration
func (g *Goertzel) Config() GoertzelConfig {
	return g.config
}

// BlockSize returns the configured block size
func (g *Goertzel) BlockSize() int {
	return g.config.BlockSize
}
