package cw

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestComputeTiming_Range(t *testing.T) {
	for wpm := 5; wpm <= 60; wpm++ {
		timing, err := ComputeTiming(wpm)
		if err != nil {
			t.Fatalf("ComputeTiming(%d) error = %v", wpm, err)
		}

		ditMs := int64(math.Round(1200 / float64(wpm)))
		if got := timing.Dit.Milliseconds(); got != ditMs {
			t.Errorf("wpm %d: Dit = %dms, want %dms", wpm, got, ditMs)
		}
		if timing.Dah != 3*timing.Dit {
			t.Errorf("wpm %d: Dah = %v, want %v", wpm, timing.Dah, 3*timing.Dit)
		}
		if timing.IntraGap != timing.Dit {
			t.Errorf("wpm %d: IntraGap = %v, want %v", wpm, timing.IntraGap, timing.Dit)
		}
		if timing.InterCharGap != 3*timing.Dit {
			t.Errorf("wpm %d: InterCharGap = %v, want %v", wpm, timing.InterCharGap, 3*timing.Dit)
		}
		if timing.InterWordGap != 7*timing.Dit {
			t.Errorf("wpm %d: InterWordGap = %v, want %v", wpm, timing.InterWordGap, 7*timing.Dit)
		}
		if timing.WPM != wpm {
			t.Errorf("WPM = %d, want %d", timing.WPM, wpm)
		}
	}
}

func TestComputeTiming_Rounds(t *testing.T) {
	tests := []struct {
		wpm   int
		ditMs int64
	}{
		{25, 48},
		{7, 171}, // 171.43
		{13, 92}, // 92.31
		{16, 75},
		{33, 36}, // 36.36
		{35, 34}, // 34.29
		{2400, 1},
	}
	for _, tt := range tests {
		timing, err := ComputeTiming(tt.wpm)
		if err != nil {
			t.Fatalf("ComputeTiming(%d) error = %v", tt.wpm, err)
		}
		if got := timing.Dit.Milliseconds(); got != tt.ditMs {
			t.Errorf("ComputeTiming(%d).Dit = %dms, want %dms", tt.wpm, got, tt.ditMs)
		}
	}
}

func TestComputeTiming_Invalid(t *testing.T) {
	for _, wpm := range []int{0, -1, -25, MaxWPM + 1} {
		_, err := ComputeTiming(wpm)
		if !errors.Is(err, ErrInvalidWPM) {
			t.Errorf("ComputeTiming(%d) error = %v, want ErrInvalidWPM", wpm, err)
		}
	}
}

func TestPatternDuration_ScenarioA(t *testing.T) {
	timing := MustTiming(25)
	if timing.Dit != 48*time.Millisecond || timing.Dah != 144*time.Millisecond {
		t.Fatalf("timing at 25 WPM = %v/%v, want 48ms/144ms", timing.Dit, timing.Dah)
	}

	got, err := PatternDuration(".-", timing)
	if err != nil {
		t.Fatalf("PatternDuration() error = %v", err)
	}
	// dit, intra gap, dah, intra gap, trailing inter-character gap
	want := (48 + 48 + 144 + 48 + 144) * time.Millisecond
	if got != want {
		t.Errorf("PatternDuration(\".-\") = %v, want %v", got, want)
	}
}

func TestPatternDuration_MatchesManualSum(t *testing.T) {
	timing := MustTiming(18)
	dit := timing.Dit.Milliseconds()

	for _, glyph := range Glyphs() {
		code, _ := Encode(glyph)
		var wantMs int64
		for _, r := range code {
			if r == Dit {
				wantMs += dit
			} else {
				wantMs += 3 * dit
			}
			wantMs += dit
		}
		wantMs += 3 * dit

		got, err := PatternDuration(code, timing)
		if err != nil {
			t.Fatalf("PatternDuration(%q) error = %v", code, err)
		}
		if got != time.Duration(wantMs)*time.Millisecond {
			t.Errorf("PatternDuration(%q) = %v, want %dms", code, got, wantMs)
		}
	}
}

func TestPatternDuration_Gaps(t *testing.T) {
	timing := MustTiming(20) // 60ms dit

	tests := []struct {
		pattern string
		wantMs  int64
	}{
		{".", 60 + 60 + 180},
		{". .", (60 + 60) + 180 + (60 + 60) + 180},
		{"./.", (60 + 60) + 420 + (60 + 60) + 180},
		{"•—", (60 + 60) + (180 + 60) + 180},
		{" ", 180 + 180},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := PatternDuration(tt.pattern, timing)
			if err != nil {
				t.Fatalf("PatternDuration() error = %v", err)
			}
			if got.Milliseconds() != tt.wantMs {
				t.Errorf("PatternDuration(%q) = %v, want %dms", tt.pattern, got, tt.wantMs)
			}
		})
	}
}

func TestPatternDuration_Errors(t *testing.T) {
	timing := MustTiming(20)

	if _, err := PatternDuration("", timing); !errors.Is(err, ErrEmptyPattern) {
		t.Errorf("empty pattern error = %v, want ErrEmptyPattern", err)
	}
	if _, err := PatternDuration(".x-", timing); !errors.Is(err, ErrInvalidGlyph) {
		t.Errorf("invalid glyph error = %v, want ErrInvalidGlyph", err)
	}
	if _, err := PatternDuration(".-", Timing{}); !errors.Is(err, ErrInvalidWPM) {
		t.Errorf("zero timing error = %v, want ErrInvalidWPM", err)
	}
}

func TestTiming_ClassifyBoundary(t *testing.T) {
	timing := MustTiming(25)
	if timing.DitMax() != 72*time.Millisecond {
		t.Fatalf("DitMax() = %v, want 72ms", timing.DitMax())
	}

	tests := []struct {
		held time.Duration
		want rune
	}{
		{40 * time.Millisecond, Dit},
		{71 * time.Millisecond, Dit},
		{72*time.Millisecond - time.Nanosecond, Dit},
		{72 * time.Millisecond, Dah},
		{100 * time.Millisecond, Dah},
		{144 * time.Millisecond, Dah},
	}
	for _, tt := range tests {
		if got := timing.Classify(tt.held); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.held, got, tt.want)
		}
	}
}

func TestTiming_ClassifyBoundary_AllSpeeds(t *testing.T) {
	for wpm := 5; wpm <= 60; wpm++ {
		timing := MustTiming(wpm)
		// 1.5 x dit in whole milliseconds, rounded up for odd dits
		boundaryMs := (3*timing.Dit.Milliseconds() + 1) / 2
		below := time.Duration(boundaryMs-1) * time.Millisecond
		at := time.Duration(boundaryMs) * time.Millisecond

		if got := timing.Classify(below); got != Dit {
			t.Errorf("wpm %d: Classify(%v) = %q, want dit", wpm, below, got)
		}
		if got := timing.Classify(at); got != Dah {
			t.Errorf("wpm %d: Classify(%v) = %q, want dah", wpm, at, got)
		}
	}
}

func TestMustTiming_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustTiming(0) did not panic")
		}
	}()
	MustTiming(0)
}
