package synth

import (
	"math"
	"testing"
	"time"
)

func createTestToneGenerator(t *testing.T) *ToneGenerator {
	t.Helper()
	g, err := NewToneGenerator(DefaultToneConfig())
	if err != nil {
		t.Fatalf("Failed to create ToneGenerator: %v", err)
	}
	return g
}

func TestBuildLoop_WholeCycles(t *testing.T) {
	g := createTestToneGenerator(t)

	buf, err := g.BuildLoop(600)
	if err != nil {
		t.Fatalf("BuildLoop() error = %v", err)
	}
	if g.LoopCycles(600) != 300 {
		t.Errorf("LoopCycles(600) = %d, want 300", g.LoopCycles(600))
	}
	if buf.Len() != 22050 {
		t.Errorf("Len() = %d, want 22050", buf.Len())
	}
	if buf.Samples[0] != 0 {
		t.Errorf("first sample = %d, want 0", buf.Samples[0])
	}
}

func TestBuildLoop_SeamlessWrap(t *testing.T) {
	g := createTestToneGenerator(t)

	for _, f := range []int{200, 441, 600, 613, 777, 1250, 2000} {
		buf, err := g.BuildLoop(f)
		if err != nil {
			t.Fatalf("BuildLoop(%d) error = %v", f, err)
		}

		s := buf.Samples
		maxStep := 0.0
		for i := 1; i < len(s); i++ {
			maxStep = math.Max(maxStep, math.Abs(float64(s[i])-float64(s[i-1])))
		}
		wrap := math.Abs(float64(s[0]) - float64(s[len(s)-1]))
		if wrap > maxStep+2 {
			t.Errorf("%d Hz: wrap step %v exceeds largest in-buffer step %v", f, wrap, maxStep)
		}

		span := buf.Duration()
		if span < 490*time.Millisecond || span > 510*time.Millisecond {
			t.Errorf("%d Hz: loop length %v, want ~500ms", f, span)
		}
	}
}

func TestBuildLoop_Amplitude(t *testing.T) {
	g := createTestToneGenerator(t)
	buf, _ := g.BuildLoop(600)

	var peak float64
	for _, v := range buf.Samples {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	want := 0.6 * math.MaxInt16
	if peak > want || peak < want*0.99 {
		t.Errorf("peak = %v, want ~%v", peak, want)
	}
}

func TestBuildLoop_InvalidFrequency(t *testing.T) {
	g := createTestToneGenerator(t)
	for _, f := range []int{0, -600, 22050, 30000} {
		if _, err := g.BuildLoop(f); err == nil {
			t.Errorf("BuildLoop(%d) expected error", f)
		}
	}
}

func TestNewToneGenerator_Invalid(t *testing.T) {
	if _, err := NewToneGenerator(ToneConfig{SampleRate: 0, Amplitude: 0.6}); err != ErrInvalidSampleRate {
		t.Errorf("error = %v, want ErrInvalidSampleRate", err)
	}
	if _, err := NewToneGenerator(ToneConfig{SampleRate: 44100, Amplitude: 0}); err != ErrInvalidAmplitude {
		t.Errorf("error = %v, want ErrInvalidAmplitude", err)
	}
	g, err := NewToneGenerator(ToneConfig{SampleRate: 44100, Amplitude: 0.6})
	if err != nil {
		t.Fatalf("NewToneGenerator() error = %v", err)
	}
	if g.Config().Span != 500*time.Millisecond {
		t.Errorf("Span = %v, want default 500ms", g.Config().Span)
	}
}
