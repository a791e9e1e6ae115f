// internal/dsp/goertzel_test.go
package dsp

import (
	"math"
	"testing"
)

// Test configuration constants. 625 Hz falls exactly on bin 20 at 16 kHz / 512.
const (
	testSampleRate    = 16000.0
	testToneFrequency = 625.0
	testBlockSize     = 512
)

// generateSine creates a float sine wave at the specified frequency
func generateSine(frequency, sampleRate float64, numSamples int, amplitude float64) []float64 {
	samples := make([]float64, numSamples)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*frequency*float64(i)/sampleRate)
	}
	return samples
}

// generateSinePCM creates a 16-bit sine wave at the specified frequency
func generateSinePCM(frequency, sampleRate float64, numSamples int, amplitude float64) []int16 {
	samples := make([]int16, numSamples)
	for i := range samples {
		samples[i] = int16(amplitude * 32767 * math.Sin(2*math.Pi*frequency*float64(i)/sampleRate))
	}
	return samples
}

func createTestGoertzel(t *testing.T) *Goertzel {
	t.Helper()
	g, err := NewGoertzel(GoertzelConfig{
		TargetFrequency: testToneFrequency,
		SampleRate:      testSampleRate,
		BlockSize:       testBlockSize,
	})
	if err != nil {
		t.Fatalf("Failed to create Goertzel: %v", err)
	}
	return g
}

func TestNewGoertzel_ValidConfig(t *testing.T) {
	g := createTestGoertzel(t)

	if g.Config().TargetFrequency != testToneFrequency {
		t.Errorf("TargetFrequency mismatch: got %v, want %v", g.Config().TargetFrequency, testToneFrequency)
	}
	if g.BlockSize() != testBlockSize {
		t.Errorf("BlockSize mismatch: got %v, want %v", g.BlockSize(), testBlockSize)
	}
}

func TestNewGoertzel_InvalidConfig(t *testing.T) {
	testCases := []struct {
		name string
		cfg  GoertzelConfig
		want error
	}{
		{"zero block", GoertzelConfig{TargetFrequency: 600, SampleRate: 16000, BlockSize: 0}, ErrInvalidBlockSize},
		{"negative block", GoertzelConfig{TargetFrequency: 600, SampleRate: 16000, BlockSize: -1}, ErrInvalidBlockSize},
		{"zero rate", GoertzelConfig{TargetFrequency: 600, SampleRate: 0, BlockSize: 512}, ErrInvalidSampleRate},
		{"zero frequency", GoertzelConfig{TargetFrequency: 0, SampleRate: 16000, BlockSize: 512}, ErrInvalidFrequency},
		{"at nyquist", GoertzelConfig{TargetFrequency: 8000, SampleRate: 16000, BlockSize: 512}, ErrInvalidFrequency},
		{"above nyquist", GoertzelConfig{TargetFrequency: 9000, SampleRate: 16000, BlockSize: 512}, ErrInvalidFrequency},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewGoertzel(tc.cfg); err != tc.want {
				t.Errorf("NewGoertzel() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGoertzel_Magnitude_OnFrequency(t *testing.T) {
	g := createTestGoertzel(t)
	samples := generateSine(testToneFrequency, testSampleRate, testBlockSize, 1.0)

	mag, err := g.Magnitude(samples)
	if err != nil {
		t.Fatalf("Magnitude() error = %v", err)
	}
	if math.Abs(mag-1.0) > 0.01 {
		t.Errorf("Magnitude() = %v, want ~1.0", mag)
	}
}

func TestGoertzel_Magnitude_OffFrequency(t *testing.T) {
	g := createTestGoertzel(t)
	samples := generateSine(1500, testSampleRate, testBlockSize, 1.0)

	mag, err := g.Magnitude(samples)
	if err != nil {
		t.Fatalf("Magnitude() error = %v", err)
	}
	if mag > 0.01 {
		t.Errorf("Magnitude() for off-frequency tone = %v, want ~0", mag)
	}
}

func TestGoertzel_Magnitude_Silence(t *testing.T) {
	g := createTestGoertzel(t)

	mag, err := g.Magnitude(make([]float64, testBlockSize))
	if err != nil {
		t.Fatalf("Magnitude() error = %v", err)
	}
	if mag != 0 {
		t.Errorf("Magnitude() of silence = %v, want 0", mag)
	}
}

func TestGoertzel_MagnitudePCM(t *testing.T) {
	g := createTestGoertzel(t)
	samples := generateSinePCM(testToneFrequency, testSampleRate, testBlockSize, 0.5)

	mag, err := g.MagnitudePCM(samples)
	if err != nil {
		t.Fatalf("MagnitudePCM() error = %v", err)
	}
	if math.Abs(mag-0.5) > 0.01 {
		t.Errorf("MagnitudePCM() = %v, want ~0.5", mag)
	}
}

func TestGoertzel_InsufficientSamples(t *testing.T) {
	g := createTestGoertzel(t)

	if _, err := g.Magnitude(make([]float64, testBlockSize-1)); err != ErrInsufficientSamples {
		t.Errorf("Magnitude() error = %v, want ErrInsufficientSamples", err)
	}
	if _, err := g.MagnitudePCM(make([]int16, 10)); err != ErrInsufficientSamples {
		t.Errorf("MagnitudePCM() error = %v, want ErrInsufficientSamples", err)
	}
}
