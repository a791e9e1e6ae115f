package cw

import (
	"sync"
	"testing"
	"time"
)

func TestNewSpeedEstimator(t *testing.T) {
	s, err := NewSpeedEstimator(MustTiming(20), DefaultSpeedSmoothing)
	if err != nil {
		t.Fatalf("NewSpeedEstimator() error = %v", err)
	}
	if s.WPM() != 20 {
		t.Errorf("WPM() = %d, want 20", s.WPM())
	}
	if s.DitEstimate() != 60*time.Millisecond {
		t.Errorf("DitEstimate() = %v, want 60ms", s.DitEstimate())
	}
}

func TestNewSpeedEstimator_Invalid(t *testing.T) {
	if _, err := NewSpeedEstimator(Timing{}, 0.1); err != ErrInvalidWPM {
		t.Errorf("zero timing error = %v, want ErrInvalidWPM", err)
	}
	for _, smoothing := range []float64{0, -0.1, 1.5} {
		if _, err := NewSpeedEstimator(MustTiming(20), smoothing); err != ErrInvalidSmoothing {
			t.Errorf("smoothing %v error = %v, want ErrInvalidSmoothing", smoothing, err)
		}
	}
}

func TestSpeedEstimator_ConvergesToSlowerSender(t *testing.T) {
	s, _ := NewSpeedEstimator(MustTiming(20), 0.2)

	// Sending 80ms dits and 240ms dahs is 15 WPM
	for i := 0; i < 100; i++ {
		s.Observe(80 * time.Millisecond)
		s.Observe(240 * time.Millisecond)
	}

	if got := s.WPM(); got != 15 {
		t.Errorf("WPM() = %d, want 15", got)
	}
	if s.Samples() != 200 {
		t.Errorf("Samples() = %d, want 200", s.Samples())
	}
}

func TestSpeedEstimator_IgnoresNonPositive(t *testing.T) {
	s, _ := NewSpeedEstimator(MustTiming(20), 0.5)
	s.Observe(0)
	s.Observe(-time.Second)
	if s.Samples() != 0 {
		t.Errorf("Samples() = %d, want 0", s.Samples())
	}
}

func TestSpeedEstimator_Reset(t *testing.T) {
	s, _ := NewSpeedEstimator(MustTiming(25), 0.5)
	s.ObserveAll([]time.Duration{100 * time.Millisecond, 30 * time.Millisecond})
	s.Reset()

	if s.WPM() != 25 || s.Samples() != 0 {
		t.Errorf("after Reset WPM() = %d, Samples() = %d; want 25, 0", s.WPM(), s.Samples())
	}
}

func TestSpeedEstimator_ConcurrentAccess(t *testing.T) {
	s, _ := NewSpeedEstimator(MustTiming(20), 0.1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Observe(60 * time.Millisecond)
				_ = s.WPM()
			}
		}()
	}
	wg.Wait()

	if s.Samples() != 800 {
		t.Errorf("Samples() = %d, want 800", s.Samples())
	}
}
