package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/audio"
	"github.com/ColonelBlimp/keytrainer/internal/config"
	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/dsp"
	"github.com/ColonelBlimp/keytrainer/internal/keyer"
	"github.com/ColonelBlimp/keytrainer/internal/playback"
	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

// beepLatency is the speaker buffer length for the beep backend
const beepLatency = 50 * time.Millisecond

// peak search band for the key tone
const (
	peakMinHz = 200
	peakMaxHz = 2000
)

// sink is an output device able to play patterns and loop a sidetone.
type sink interface {
	playback.Sink
	playback.LoopSink
	Close() error
}

func timingFor(s *config.Settings) (cw.Timing, error) {
	return cw.ComputeTiming(s.WPM)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func newSynthesizer(s *config.Settings, logger *slog.Logger) (*synth.Synthesizer, error) {
	cfg := synth.DefaultPatternConfig()
	cfg.SampleRate = s.PlaybackSampleRate
	cfg.MinDuration = ms(s.MinBufferMs)
	return synth.NewSynthesizer(cfg, logger)
}

func newToneGenerator(s *config.Settings) (*synth.ToneGenerator, error) {
	cfg := synth.DefaultToneConfig()
	cfg.SampleRate = s.PlaybackSampleRate
	cfg.Span = ms(s.LoopSpanMs)
	return synth.NewToneGenerator(cfg)
}

func detectorConfig(s *config.Settings, timing cw.Timing, logger *slog.Logger) keyer.Config {
	cfg := keyer.DefaultConfig()
	cfg.Timing = timing
	cfg.Noise = dsp.NoiseConfig{
		InitialFloor: s.InitialNoiseFloor,
		Alpha:        s.NoiseAlpha,
		QuietRatio:   dsp.DefaultQuietRatio,
	}
	cfg.Sensitivity = s.Sensitivity
	cfg.Debounce = ms(s.DebounceMs)
	cfg.Logger = logger
	return cfg
}

func captureConfig(s *config.Settings) audio.Config {
	cfg := audio.DefaultConfig()
	cfg.DeviceIndex = s.DeviceIndex
	cfg.SampleRate = uint32(s.CaptureSampleRate)
	cfg.BufferSize = uint32(s.CaptureBlockSize)
	return cfg
}

// openSink opens the configured playback backend.
func openSink(s *config.Settings, logger *slog.Logger) (sink, error) {
	switch s.PlaybackBackend {
	case "beep":
		b, err := audio.NewBeepSink(s.PlaybackSampleRate, beepLatency, logger)
		if err != nil {
			return nil, fmt.Errorf("audio output: %w", err)
		}
		return b, nil
	case "malgo", "":
		p, err := audio.NewPlayer(audio.PlayerConfig{DeviceIndex: -1, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("audio output: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown playback backend %q", s.PlaybackBackend)
	}
}

// openSource returns how the detector acquires its audio: a WAV replay when
// replay is set, otherwise the capture device.
func openSource(s *config.Settings, replay string) keyer.OpenFunc {
	if replay != "" {
		return func(context.Context) (keyer.Source, error) {
			src, err := audio.OpenWAV(replay, s.CaptureBlockSize, true)
			if err != nil {
				return nil, err
			}
			return src, nil
		}
	}
	cfg := captureConfig(s)
	return func(ctx context.Context) (keyer.Source, error) {
		c, err := audio.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("audio input: %w", err)
		}
		return c, nil
	}
}

// peakSource reports the dominant frequency of the blocks passing through it.
type peakSource struct {
	keyer.Source
	sampleRate float64
	every      int
	count      int
	peak       atomic.Uint64
}

func withPeak(open keyer.OpenFunc, sampleRate, every int) (keyer.OpenFunc, *peakSource) {
	ps := &peakSource{sampleRate: float64(sampleRate), every: max(every, 1)}
	return func(ctx context.Context) (keyer.Source, error) {
		src, err := open(ctx)
		if err != nil {
			return nil, err
		}
		if w, ok := src.(*audio.WAVSource); ok {
			ps.sampleRate = float64(w.SampleRate())
		}
		ps.Source = src
		return ps, nil
	}, ps
}

// Read is called only from the detector's capture loop.
func (p *peakSource) Read(ctx context.Context) ([]int16, error) {
	block, err := p.Source.Read(ctx)
	if err != nil || len(block) == 0 {
		return block, err
	}
	p.count++
	if p.count%p.every != 0 {
		return block, nil
	}
	if pk, perr := dsp.PeakFrequency(block, p.sampleRate, peakMinHz, math.Min(peakMaxHz, p.sampleRate/2)); perr == nil {
		p.peak.Store(math.Float64bits(pk.Frequency))
	}
	return block, nil
}

// Frequency returns the last measured peak in Hz, zero before the first block.
func (p *peakSource) Frequency() float64 {
	return math.Float64frombits(p.peak.Load())
}
