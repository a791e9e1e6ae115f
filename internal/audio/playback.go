package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

// PlayerConfig holds playback configuration
type PlayerConfig struct {
	DeviceIndex int // -1 for default device
	Logger      *slog.Logger
}

// Player writes PCM buffers to an output device through malgo. A device is
// opened per buffer and released on every exit path. The sidetone loop keeps
// its own device open across StopLoop/StartLoop and only releases it when the
// loop buffer changes or the player is closed.
type Player struct {
	config PlayerConfig
	log    *slog.Logger

	mu  sync.Mutex // one pattern at a time
	ctx *malgo.AllocatedContext

	loopMu      sync.Mutex
	loopDevice  *malgo.Device
	loopCursor  *pcmCursor
	loopSamples []int16
}

// NewPlayer initializes the audio backend for playback
func NewPlayer(cfg PlayerConfig) (*Player, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Player{
		config: cfg,
		log:    cfg.Logger.With("component", "player"),
		ctx:    ctx,
	}, nil
}

// Play writes buf to a fresh output device and returns once the buffer's
// duration has elapsed or ctx ends. The device is released either way.
func (p *Player) Play(ctx context.Context, buf synth.Buffer) error {
	if buf.Len() == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return ErrNotInitialized
	}

	dev, err := p.openDevice(buf.SampleRate, newPCMCursor(buf.Bytes(), false))
	if err != nil {
		return err
	}
	defer p.release(dev)

	if err := dev.Start(); err != nil {
		return fmt.Errorf("start playback device: %w", err)
	}

	timer := time.NewTimer(buf.Duration())
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartLoop plays buf repeatedly until StopLoop. Resuming the same buffer
// reuses the open device; a different buffer replaces it. A device that
// refuses to start is released and recreated once.
func (p *Player) StartLoop(buf synth.Buffer) error {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()

	if p.ctx == nil {
		return ErrNotInitialized
	}
	if p.loopDevice != nil && sameSamples(p.loopSamples, buf.Samples) {
		p.loopCursor.paused.Store(false)
		if p.loopDevice.IsStarted() {
			return nil
		}
		if err := p.loopDevice.Start(); err == nil {
			return nil
		}
	}
	p.releaseLoopLocked()

	data := buf.Bytes()
	cursor := newPCMCursor(data, true)
	dev, err := p.openDevice(buf.SampleRate, cursor)
	if err != nil {
		return err
	}
	if err := dev.Start(); err != nil {
		p.log.Warn("loop device failed to start, recreating", "error", err)
		p.release(dev)

		cursor = newPCMCursor(data, true)
		dev, err = p.openDevice(buf.SampleRate, cursor)
		if err != nil {
			return err
		}
		if err := dev.Start(); err != nil {
			p.release(dev)
			return fmt.Errorf("start loop device: %w", err)
		}
	}

	p.loopDevice = dev
	p.loopCursor = cursor
	p.loopSamples = buf.Samples
	return nil
}

// StopLoop silences the loop and rewinds it. The device stays open so the
// next StartLoop resumes without reopening it. Stopping when idle is a no-op.
func (p *Player) StopLoop() error {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	if p.loopCursor != nil {
		p.loopCursor.paused.Store(true)
	}
	return nil
}

func (p *Player) releaseLoopLocked() {
	if p.loopDevice == nil {
		return
	}
	p.release(p.loopDevice)
	p.loopDevice = nil
	p.loopCursor = nil
	p.loopSamples = nil
}

// Close releases the loop device and the backend context
func (p *Player) Close() error {
	p.loopMu.Lock()
	p.releaseLoopLocked()
	p.loopMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx == nil {
		return nil
	}
	err := p.ctx.Uninit()
	p.ctx.Free()
	p.ctx = nil
	if err != nil {
		return fmt.Errorf("uninit context: %w", err)
	}
	return nil
}

func (p *Player) openDevice(sampleRate int, cursor *pcmCursor) (*malgo.Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1

	id, err := deviceID(p.ctx, Output, p.config.DeviceIndex)
	if err != nil {
		return nil, err
	}
	if id != nil {
		cfg.Playback.DeviceID = id.Pointer()
	}

	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			cursor.fill(out)
		},
	})
	if err != nil {
		p.log.Error("open playback device", "error", err)
		return nil, fmt.Errorf("init playback device: %w", err)
	}
	return dev, nil
}

func (p *Player) release(dev *malgo.Device) {
	if err := dev.Stop(); err != nil {
		p.log.Warn("stop playback device", "error", err)
	}
	dev.Uninit()
}

// pcmCursor feeds a byte buffer to the device callback. Only the audio
// thread touches pos once the device starts.
type pcmCursor struct {
	data   []byte
	pos    int
	loop   bool
	paused atomic.Bool
}

func newPCMCursor(data []byte, loop bool) *pcmCursor {
	return &pcmCursor{data: data, loop: loop}
}

// fill copies the next bytes into out, wrapping when looping, and zeroes
// whatever remains. It returns the number of bytes copied. A paused cursor
// writes silence and rewinds to the start.
func (c *pcmCursor) fill(out []byte) int {
	if c.paused.Load() {
		c.pos = 0
		clear(out)
		return 0
	}
	n := 0
	for n < len(out) {
		if c.pos >= len(c.data) {
			if !c.loop || len(c.data) == 0 {
				break
			}
			c.pos = 0
		}
		k := copy(out[n:], c.data[c.pos:])
		n += k
		c.pos += k
	}
	clear(out[n:])
	return n
}

func sameSamples(a, b []int16) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}
