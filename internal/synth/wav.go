package synth

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrInvalidWAV indicates the input is not a RIFF/WAVE file
	ErrInvalidWAV = errors.New("invalid WAV file")
	// ErrUnsupportedWAV indicates a WAV encoding other than 16-bit PCM
	ErrUnsupportedWAV = errors.New("only 16-bit PCM WAV is supported")
)

const (
	wavBitDepth  = 16
	wavPCMFormat = 1
)

// WriteWAV encodes b as a mono 16-bit PCM WAV file.
func WriteWAV(w io.WriteSeeker, b Buffer) error {
	if b.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}

	enc := wav.NewEncoder(w, b.SampleRate, wavBitDepth, 1, wavPCMFormat)
	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		data[i] = int(s)
	}
	ib := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// ReadWAV decodes a 16-bit PCM WAV file. Multi-channel files keep only the first channel.
func ReadWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}
	if dec.BitDepth != wavBitDepth {
		return Buffer{}, fmt.Errorf("%w: got %d-bit", ErrUnsupportedWAV, dec.BitDepth)
	}

	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("read wav samples: %w", err)
	}

	channels := max(int(dec.NumChans), 1)
	samples := make([]int16, 0, len(ib.Data)/channels)
	for i := 0; i < len(ib.Data); i += channels {
		samples = append(samples, int16(ib.Data[i]))
	}
	return Buffer{Samples: samples, SampleRate: int(dec.SampleRate)}, nil
}
