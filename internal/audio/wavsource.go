package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrInvalidWAV     = errors.New("invalid WAV file")
	ErrUnsupportedWAV = errors.New("only 16-bit PCM WAV is supported")
)

// WAVSource replays a recording as if it were a capture device, handing out
// fixed-size mono blocks. When paced, each block is released no earlier than
// its position in the recording, so wall-clock timing matches the original keying.
type WAVSource struct {
	closer   io.Closer
	dec      *wav.Decoder
	buf      *goaudio.IntBuffer
	channels int
	rate     int
	block    int
	paced    bool

	now       func() time.Time
	start     time.Time
	delivered int64
}

// OpenWAV opens path for replay
func OpenWAV(path string, blockSize int, paced bool) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	src, err := NewWAVSource(f, blockSize, paced)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	src.closer = f
	return src, nil
}

// NewWAVSource reads WAV data from r
func NewWAVSource(r io.ReadSeeker, blockSize int, paced bool) (*WAVSource, error) {
	if blockSize <= 0 {
		blockSize = int(DefaultConfig().BufferSize)
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.BitDepth != 16 {
		return nil, fmt.Errorf("%w: got %d-bit", ErrUnsupportedWAV, dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seek to PCM data: %w", err)
	}

	channels := max(int(dec.NumChans), 1)
	return &WAVSource{
		dec:      dec,
		buf:      &goaudio.IntBuffer{Format: dec.Format(), Data: make([]int, blockSize*channels)},
		channels: channels,
		rate:     int(dec.SampleRate),
		block:    blockSize,
		paced:    paced,
		now:      time.Now,
	}, nil
}

// SampleRate returns the recording's sample rate
func (s *WAVSource) SampleRate() int {
	return s.rate
}

// Read returns the next block. The final block may be short; after it Read returns io.EOF.
func (s *WAVSource) Read(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.buf.Data = s.buf.Data[:cap(s.buf.Data)]
	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		return nil, io.EOF
	}
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read wav block: %w", err)
	}

	frames := n / s.channels
	block := make([]int16, frames)
	for f := range block {
		sum := 0
		for ch := range s.channels {
			sum += s.buf.Data[f*s.channels+ch]
		}
		block[f] = int16(sum / s.channels)
	}

	if s.paced {
		if err := s.pace(ctx, frames); err != nil {
			return nil, err
		}
	}
	return block, nil
}

// pace waits until the end of the block being returned is due.
func (s *WAVSource) pace(ctx context.Context, frames int) error {
	if s.start.IsZero() {
		s.start = s.now()
	}
	s.delivered += int64(frames)
	due := s.start.Add(time.Duration(s.delivered) * time.Second / time.Duration(s.rate))

	wait := due.Sub(s.now())
	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the underlying file, if any
func (s *WAVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
