// Package synth renders Morse patterns and sidetone loops into 16-bit PCM.
package synth

import (
	"encoding/binary"
	"errors"
	"slices"
	"time"
)

var (
	// ErrInvalidSampleRate indicates sample rate must be positive
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidFrequency indicates frequency must be positive and below Nyquist
	ErrInvalidFrequency = errors.New("tone frequency must be positive and less than Nyquist frequency")
	// ErrInvalidAmplitude indicates amplitude must be in (0, 1]
	ErrInvalidAmplitude = errors.New("amplitude must be greater than 0.0 and at most 1.0")
)

// Buffer is mono 16-bit signed PCM at a declared sample rate. The caller that
// requested a Buffer owns it exclusively.
type Buffer struct {
	Samples    []int16
	SampleRate int
}

// Len returns the number of samples
func (b Buffer) Len() int {
	return len(b.Samples)
}

// Duration returns how long the buffer plays at its sample rate.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// Bytes returns the samples as little-endian S16 frames.
func (b Buffer) Bytes() []byte {
	out := make([]byte, 2*len(b.Samples))
	for i, s := range b.Samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Equal reports whether two buffers hold identical samples at the same rate.
func (b Buffer) Equal(other Buffer) bool {
	return b.SampleRate == other.SampleRate && slices.Equal(b.Samples, other.Samples)
}

// samplesFor converts a whole-millisecond duration to a sample count, rounding down.
func samplesFor(d time.Duration, sampleRate int) int {
	return int(d.Milliseconds() * int64(sampleRate) / 1000)
}
