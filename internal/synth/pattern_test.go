package synth

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/dsp"
)

const (
	testRate      = 44100
	testFrequency = 600
)

func createTestSynthesizer(t *testing.T) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(DefaultPatternConfig(), nil)
	if err != nil {
		t.Fatalf("Failed to create Synthesizer: %v", err)
	}
	return s
}

func assertSilent(t *testing.T, samples []int16, from, to int) {
	t.Helper()
	for i := from; i < to; i++ {
		if samples[i] != 0 {
			t.Fatalf("sample %d = %d, want silence in [%d, %d)", i, samples[i], from, to)
		}
	}
}

func assertAudible(t *testing.T, samples []int16, from, to int) {
	t.Helper()
	for i := from; i < to; i++ {
		if samples[i] != 0 {
			return
		}
	}
	t.Fatalf("no audio in [%d, %d)", from, to)
}

func TestNewSynthesizer_InvalidConfig(t *testing.T) {
	cfg := DefaultPatternConfig()
	cfg.SampleRate = 0
	if _, err := NewSynthesizer(cfg, nil); err != ErrInvalidSampleRate {
		t.Errorf("zero rate error = %v, want ErrInvalidSampleRate", err)
	}

	cfg = DefaultPatternConfig()
	cfg.Amplitude = 1.5
	if _, err := NewSynthesizer(cfg, nil); err != ErrInvalidAmplitude {
		t.Errorf("amplitude error = %v, want ErrInvalidAmplitude", err)
	}
}

func TestRender_DitDahAt25WPM(t *testing.T) {
	s := createTestSynthesizer(t)
	timing := cw.MustTiming(25)

	buf, err := s.Render(".-", testFrequency, timing)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// 432 ms at 44.1 kHz
	if buf.Len() != 19051 {
		t.Fatalf("Len() = %d, want 19051", buf.Len())
	}
	if buf.SampleRate != testRate {
		t.Errorf("SampleRate = %d, want %d", buf.SampleRate, testRate)
	}

	const (
		ditEnd   = 2116
		dahStart = 4232
		dahEnd   = 10582
	)
	assertAudible(t, buf.Samples, 0, ditEnd)
	assertSilent(t, buf.Samples, ditEnd, dahStart)
	assertAudible(t, buf.Samples, dahStart, dahEnd)
	assertSilent(t, buf.Samples, dahEnd, buf.Len())
}

func TestRender_Idempotent(t *testing.T) {
	s := createTestSynthesizer(t)
	timing := cw.MustTiming(18)

	a, err := s.Render("-.-.", testFrequency, timing)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	b, err := s.Render("-.-.", testFrequency, timing)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !a.Equal(b) {
		t.Error("two renders of the same pattern differ")
	}
}

func TestRender_PadsShortPatterns(t *testing.T) {
	s := createTestSynthesizer(t)
	// 20 + 20 + 60 = 100 ms at 60 WPM
	timing := cw.MustTiming(60)

	buf, err := s.Render(".", testFrequency, timing)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := testRate / 5
	if buf.Len() != want {
		t.Fatalf("Len() = %d, want %d (200 ms)", buf.Len(), want)
	}
	if buf.Duration() != 200*time.Millisecond {
		t.Errorf("Duration() = %v, want 200ms", buf.Duration())
	}
	assertAudible(t, buf.Samples, 0, 882)
	assertSilent(t, buf.Samples, 882, buf.Len())
}

func TestRender_LengthMatchesPatternDuration(t *testing.T) {
	s := createTestSynthesizer(t)

	for _, wpm := range []int{5, 13, 20, 33, 60} {
		timing := cw.MustTiming(wpm)
		for _, pattern := range []string{"...---...", "-.--", ".- -...", ". / ."} {
			d, err := cw.PatternDuration(pattern, timing)
			if err != nil {
				t.Fatalf("PatternDuration(%q) error = %v", pattern, err)
			}
			buf, err := s.Render(pattern, testFrequency, timing)
			if err != nil {
				t.Fatalf("Render(%q) error = %v", pattern, err)
			}
			want := max(int(d.Milliseconds()*testRate/1000), testRate/5)
			if buf.Len() != want {
				t.Errorf("wpm %d %q: Len() = %d, want %d", wpm, pattern, buf.Len(), want)
			}
		}
	}
}

func TestRender_Pitch(t *testing.T) {
	s := createTestSynthesizer(t)
	buf, err := s.Render("-", testFrequency, cw.MustTiming(20))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// 600 Hz is bin 60 of a 4410 point block at 44.1 kHz
	block := buf.Samples[200 : 200+4410]
	on, err := dsp.NewGoertzel(dsp.GoertzelConfig{TargetFrequency: testFrequency, SampleRate: testRate, BlockSize: 4410})
	if err != nil {
		t.Fatalf("NewGoertzel() error = %v", err)
	}
	off, err := dsp.NewGoertzel(dsp.GoertzelConfig{TargetFrequency: 700, SampleRate: testRate, BlockSize: 4410})
	if err != nil {
		t.Fatalf("NewGoertzel() error = %v", err)
	}

	onMag, _ := on.MagnitudePCM(block)
	offMag, _ := off.MagnitudePCM(block)
	if math.Abs(onMag-0.5) > 0.02 {
		t.Errorf("magnitude at %d Hz = %v, want ~0.5", testFrequency, onMag)
	}
	if offMag > 0.01 {
		t.Errorf("magnitude at 700 Hz = %v, want ~0", offMag)
	}

	peak, err := dsp.PeakFrequency(block, testRate, 200, 2000)
	if err != nil {
		t.Fatalf("PeakFrequency() error = %v", err)
	}
	if math.Abs(peak.Frequency-testFrequency) > 5 {
		t.Errorf("PeakFrequency() = %v, want ~%d", peak.Frequency, testFrequency)
	}
}

func TestRender_Envelope(t *testing.T) {
	s := createTestSynthesizer(t)
	buf, err := s.Render("-", testFrequency, cw.MustTiming(20))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// 180 ms dah, 3 ms fade
	n := 180 * testRate / 1000
	fade := 3 * testRate / 1000
	full := 0.5 * math.MaxInt16

	if buf.Samples[0] != 0 {
		t.Errorf("first sample = %d, want 0", buf.Samples[0])
	}
	if last := math.Abs(float64(buf.Samples[n-1])); last > full/float64(fade)+1 {
		t.Errorf("last tone sample = %v, want near zero", last)
	}

	var peak float64
	for _, v := range buf.Samples[fade : n-fade] {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak > full || peak < full*0.99 {
		t.Errorf("sustain peak = %v, want ~%v", peak, full)
	}
}

func TestRender_Errors(t *testing.T) {
	s := createTestSynthesizer(t)
	timing := cw.MustTiming(20)

	testCases := []struct {
		name      string
		pattern   string
		frequency int
		timing    cw.Timing
		want      error
	}{
		{"empty pattern", "", testFrequency, timing, cw.ErrEmptyPattern},
		{"bad glyph", ".x-", testFrequency, timing, cw.ErrInvalidGlyph},
		{"zero frequency", ".-", 0, timing, ErrInvalidFrequency},
		{"at nyquist", ".-", testRate / 2, timing, ErrInvalidFrequency},
		{"zero timing", ".-", testFrequency, cw.Timing{}, cw.ErrInvalidWPM},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Render(tc.pattern, tc.frequency, tc.timing); !errors.Is(err, tc.want) {
				t.Errorf("Render() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestFill_Truncates(t *testing.T) {
	s := createTestSynthesizer(t)
	timing := cw.MustTiming(25)

	buf := make([]int16, 3000)
	written, truncated := s.fill(buf, ".-", testFrequency, timing)
	if !truncated {
		t.Fatal("fill() truncated = false, want true")
	}
	// the dit fits but its trailing gap runs off the end
	if written != len(buf) {
		t.Errorf("fill() offset = %d, want %d", written, len(buf))
	}
	assertAudible(t, buf, 0, 2116)
	assertSilent(t, buf, 2116, len(buf))
}

func TestFill_ExactFit(t *testing.T) {
	s := createTestSynthesizer(t)
	timing := cw.MustTiming(25)

	buf := make([]int16, 19051)
	if _, truncated := s.fill(buf, ".-", testFrequency, timing); truncated {
		t.Error("fill() truncated a buffer sized by PatternDuration")
	}
}

func TestBuffer_Bytes(t *testing.T) {
	b := Buffer{Samples: []int16{1, -2, 256}, SampleRate: testRate}
	got := b.Bytes()
	want := []byte{0x01, 0x00, 0xFE, 0xFF, 0x00, 0x01}
	if string(got) != string(want) {
		t.Errorf("Bytes() = %v, want %v", got, want)
	}
}

func TestBuffer_Equal(t *testing.T) {
	base := Buffer{Samples: []int16{1, -2, 3}, SampleRate: 44100}

	tests := []struct {
		name  string
		other Buffer
		want  bool
	}{
		{"identical copy", Buffer{Samples: []int16{1, -2, 3}, SampleRate: 44100}, true},
		{"different rate", Buffer{Samples: []int16{1, -2, 3}, SampleRate: 16000}, false},
		{"different sample", Buffer{Samples: []int16{1, 2, 3}, SampleRate: 44100}, false},
		{"shorter", Buffer{Samples: []int16{1, -2}, SampleRate: 44100}, false},
		{"empty", Buffer{SampleRate: 44100}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
	if !(Buffer{}).Equal(Buffer{Samples: []int16{}}) {
		t.Error("nil and empty sample slices should compare equal")
	}
}

func TestBuffer_Duration(t *testing.T) {
	if d := (Buffer{Samples: make([]int16, testRate), SampleRate: testRate}).Duration(); d != time.Second {
		t.Errorf("Duration() = %v, want 1s", d)
	}
	if d := (Buffer{Samples: make([]int16, 10)}).Duration(); d != 0 {
		t.Errorf("Duration() with no rate = %v, want 0", d)
	}
}

func TestToneBurst(t *testing.T) {
	s := createTestSynthesizer(t)

	buf, err := s.ToneBurst(880, 400*time.Millisecond)
	if err != nil {
		t.Fatalf("ToneBurst() error = %v", err)
	}
	if buf.Len() != 17640 {
		t.Errorf("Len() = %d, want 17640", buf.Len())
	}
	assertAudible(t, buf.Samples, 0, buf.Len())

	if _, err := s.ToneBurst(0, time.Second); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("ToneBurst(0) error = %v, want ErrInvalidFrequency", err)
	}
}
