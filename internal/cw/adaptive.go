package cw

import (
	"errors"
	"sync"
	"time"
)

// DefaultSpeedSmoothing is the EMA weight given to each new element
const DefaultSpeedSmoothing = 0.1

// ErrInvalidSmoothing indicates smoothing factor must be in (0, 1]
var ErrInvalidSmoothing = errors.New("speed smoothing must be greater than 0.0 and at most 1.0")

// SpeedEstimator tracks the speed a user is actually sending at.
// Every keyed element is converted to a dit-equivalent duration and folded into
// an exponential moving average seeded from the target Timing.
type SpeedEstimator struct {
	mu        sync.Mutex
	target    Timing
	smoothing float64
	ditMs     float64
	samples   int
}

// NewSpeedEstimator creates an estimator seeded at the target speed.
func NewSpeedEstimator(target Timing, smoothing float64) (*SpeedEstimator, error) {
	if target.Dit <= 0 {
		return nil, ErrInvalidWPM
	}
	if smoothing <= 0 || smoothing > 1 {
		return nil, ErrInvalidSmoothing
	}
	return &SpeedEstimator{
		target:    target,
		smoothing: smoothing,
		ditMs:     float64(target.Dit.Milliseconds()),
	}, nil
}

// Observe folds one keyed element into the estimate. The element is classified
// against the target timing so estimate drift never moves the dit/dah boundary.
func (s *SpeedEstimator) Observe(held time.Duration) {
	if held <= 0 {
		return
	}
	estimatedDit := float64(held) / float64(time.Millisecond)
	if s.target.Classify(held) == Dah {
		estimatedDit /= DahDitRatio
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ditMs = (1-s.smoothing)*s.ditMs + s.smoothing*estimatedDit
	s.samples++
}

// ObserveAll folds every duration of a completed character into the estimate.
func (s *SpeedEstimator) ObserveAll(held []time.Duration) {
	for _, d := range held {
		s.Observe(d)
	}
}

// WPM returns the estimated sending speed, rounded to the nearest word per minute.
func (s *SpeedEstimator) WPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ditMs <= 0 {
		return s.target.WPM
	}
	return int(MillisecondsPerWord/s.ditMs + 0.5)
}

// DitEstimate returns the current dit-equivalent duration.
func (s *SpeedEstimator) DitEstimate() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.ditMs * float64(time.Millisecond))
}

// Samples returns how many elements have been observed since the last Reset.
func (s *SpeedEstimator) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

// Reset returns the estimate to the target speed.
func (s *SpeedEstimator) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ditMs = float64(s.target.Dit.Milliseconds())
	s.samples = 0
}
