package dsp

import (
	"errors"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// ErrInvalidBand indicates the search band is empty or above Nyquist
var ErrInvalidBand = errors.New("search band must satisfy 0 <= min < max <= Nyquist")

// Peak is the strongest spectral component found in a search band.
type Peak struct {
	Frequency float64
	Magnitude float64
}

// PeakFrequency finds the dominant frequency of a PCM block between minHz and maxHz.
// The block is Hann windowed and the peak bin refined by parabolic interpolation.
// Silent input returns a zero Peak.
func PeakFrequency(block []int16, sampleRate, minHz, maxHz float64) (Peak, error) {
	if sampleRate <= 0 {
		return Peak{}, ErrInvalidSampleRate
	}
	if minHz < 0 || maxHz <= minHz || maxHz > sampleRate/2 {
		return Peak{}, ErrInvalidBand
	}
	if len(block) < 4 {
		return Peak{}, ErrInsufficientSamples
	}

	samples := ToFloat(block)
	window.Apply(samples, window.Hann)
	spectrum := fft.FFTReal(samples)

	binWidth := sampleRate / float64(len(samples))
	lo := int(minHz / binWidth)
	hi := int(maxHz / binWidth)
	if hi >= len(spectrum)/2 {
		hi = len(spectrum)/2 - 1
	}

	best, bestMag := -1, 0.0
	for i := lo; i <= hi; i++ {
		if m := cmplx.Abs(spectrum[i]); m > bestMag {
			best, bestMag = i, m
		}
	}
	if best < 0 {
		return Peak{}, nil
	}

	delta := 0.0
	if best > 0 && best < len(spectrum)-1 {
		y1 := cmplx.Abs(spectrum[best-1])
		y3 := cmplx.Abs(spectrum[best+1])
		if den := 2 * (2*bestMag - y1 - y3); den != 0 {
			delta = (y3 - y1) / den
		}
	}

	return Peak{
		Frequency: (float64(best) + delta) * binWidth,
		Magnitude: bestMag,
	}, nil
}
