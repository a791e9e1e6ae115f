package dsp

import "math"

// FullScale is the magnitude of the most negative int16 sample.
const FullScale = 32768.0

// RMS returns the root-mean-square amplitude of a PCM block in int16 units.
// An empty block has zero RMS.
func RMS(block []int16) float64 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(block)))
}

// ToFloat converts 16-bit PCM to floats in [-1, 1).
func ToFloat(block []int16) []float64 {
	out := make([]float64, len(block))
	for i, s := range block {
		out[i] = float64(s) / FullScale
	}
	return out
}
