// internal/dsp/detector.go
package dsp

import (
	"errors"
	"time"
)

var (
	// ErrInvalidNoiseFloor indicates the starting noise floor must be positive
	ErrInvalidNoiseFloor = errors.New("initial noise floor must be positive")
	// ErrInvalidAlpha indicates the noise floor EMA weight must be between 0 and 1
	ErrInvalidAlpha = errors.New("noise alpha must be greater than 0.0 and less than 1.0")
	// ErrInvalidQuietRatio indicates the quiet gate must be between 0 and 1
	ErrInvalidQuietRatio = errors.New("quiet ratio must be greater than 0.0 and at most 1.0")
	// ErrInvalidDebounce indicates debounce interval must be non-negative
	ErrInvalidDebounce = errors.New("debounce interval must be non-negative")
)

// DefaultQuietRatio gates noise floor adaptation: only blocks quieter than
// this fraction of the current threshold are treated as ambient noise.
const DefaultQuietRatio = 0.5

// NoiseConfig holds configuration for adaptive noise floor tracking.
type NoiseConfig struct {
	// InitialFloor is the starting noise floor in int16 RMS units (from config: initial_noise_floor)
	InitialFloor float64
	// Alpha is the EMA weight of each quiet block (from config: noise_alpha)
	// Small values adapt slowly so the keyed tone never drags the floor up.
	Alpha float64
	// QuietRatio is the fraction of the threshold below which a block counts as silence
	QuietRatio float64
}

// NoiseTracker follows the ambient level of an audio stream and derives the
// key-press threshold from it. Not safe for concurrent use; the capture loop owns it.
type NoiseTracker struct {
	config NoiseConfig
	floor  float64
}

// NewNoiseTracker creates a noise tracker with the given configuration.
func NewNoiseTracker(cfg NoiseConfig) (*NoiseTracker, error) {
	if cfg.InitialFloor <= 0 {
		return nil, ErrInvalidNoiseFloor
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return nil, ErrInvalidAlpha
	}
	if cfg.QuietRatio == 0 {
		cfg.QuietRatio = DefaultQuietRatio
	}
	if cfg.QuietRatio < 0 || cfg.QuietRatio > 1 {
		return nil, ErrInvalidQuietRatio
	}

	return &NoiseTracker{
		config: cfg,
		floor:  cfg.InitialFloor,
	}, nil
}

// Update folds one block's RMS into the tracker and returns the threshold the
// block should be judged against. The threshold is taken before adaptation so a
// loud block is never compared with a floor it moved itself.
func (n *NoiseTracker) Update(rms, sensitivity float64) float64 {
	threshold := n.floor * sensitivity
	if rms < threshold*n.config.QuietRatio {
		n.floor = (1-n.config.Alpha)*n.floor + n.config.Alpha*rms
	}
	return threshold
}

// Floor returns the current noise floor
func (n *NoiseTracker) Floor() float64 {
	return n.floor
}

// Reset returns the floor to its initial value
func (n *NoiseTracker) Reset() {
	n.floor = n.config.InitialFloor
}

// Config returns the current configuration
func (n *NoiseTracker) Config() NoiseConfig {
	return n.config
}

// Debouncer accepts a state change only once a minimum interval has passed
// since the previous accepted change, rejecting contact chatter.
type Debouncer struct {
	interval   time.Duration
	state      bool
	lastChange time.Time
}

// NewDebouncer creates a debouncer in the released state.
func NewDebouncer(interval time.Duration, start time.Time) (*Debouncer, error) {
	if interval < 0 {
		return nil, ErrInvalidDebounce
	}
	return &Debouncer{
		interval:   interval,
		lastChange: start,
	}, nil
}

// Update offers a desired state at time now. It returns true when the state changed.
func (d *Debouncer) Update(want bool, now time.Time) bool {
	if want == d.state || now.Sub(d.lastChange) <= d.interval {
		return false
	}
	d.state = want
	d.lastChange = now
	return true
}

// State returns the last accepted state
func (d *Debouncer) State() bool {
	return d.state
}

// Reset forces the released state and restarts the interval at now.
func (d *Debouncer) Reset(now time.Time) {
	d.state = false
	d.lastChange = now
}
