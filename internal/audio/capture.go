// internal/audio/capture.go
package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	ErrNotInitialized = errors.New("audio capture not initialized")
	ErrAlreadyRunning = errors.New("audio capture already running")
	ErrNotRunning     = errors.New("audio capture not running")
	ErrDeviceIndex    = errors.New("device index out of range")
)

// Config holds audio capture configuration
type Config struct {
	DeviceIndex int    // -1 for default device
	SampleRate  uint32 // e.g., 16000
	Channels    uint32 // device channels; always delivered as mono
	BufferSize  uint32 // frames per block handed to Read
}

// DefaultConfig returns the capture format the key detector expects
func DefaultConfig() Config {
	return Config{
		DeviceIndex: -1,
		SampleRate:  16000,
		Channels:    1,
		BufferSize:  512,
	}
}

// SampleCallback is called directly from the audio thread with new samples.
// Must be non-blocking and fast.
type SampleCallback func(samples []int16)

// Capture records mono 16-bit PCM from an input device and hands it out in
// fixed-size blocks.
type Capture struct {
	config      Config
	ctx         *malgo.AllocatedContext
	device      *malgo.Device
	running     bool
	mu          sync.RWMutex
	callbackPtr atomic.Pointer[SampleCallback]

	closed    atomic.Bool
	closeOnce sync.Once

	// Samples carries whatever the device delivers per callback
	Samples chan []int16

	// pending is only touched by Read
	pending []int16
}

// New creates a new audio capture instance
func New(cfg Config) *Capture {
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Capture{
		config:  cfg,
		Samples: make(chan []int16, 64),
	}
}

// Open initializes the backend and starts capturing. The returned capture is
// ready for Read; Close releases the device.
func Open(ctx context.Context, cfg Config) (*Capture, error) {
	c := New(cfg)
	if err := c.Init(); err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Config returns the capture configuration
func (c *Capture) Config() Config {
	return c.config
}

// SetCallback sets a callback for real-time sample processing.
func (c *Capture) SetCallback(cb SampleCallback) {
	if cb == nil {
		c.callbackPtr.Store(nil)
	} else {
		c.callbackPtr.Store(&cb)
	}
}

// Init initializes the audio backend
func (c *Capture) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	c.ctx = ctx

	return nil
}

// Devices lists the capture devices visible to the initialized backend
func (c *Capture) Devices() ([]DeviceInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ctx == nil {
		return nil, ErrNotInitialized
	}

	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	return describe(infos), nil
}

// Start begins audio capture
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.ctx == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	c.mu.Unlock()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = c.config.SampleRate
	deviceConfig.PeriodSizeInFrames = c.config.BufferSize
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = c.config.Channels

	id, err := deviceID(c.ctx, Input, c.config.DeviceIndex)
	if err != nil {
		return err
	}
	if id != nil {
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	channels := int(c.config.Channels)
	onRecvFrames := func(_, inputSamples []byte, _ uint32) {
		if len(inputSamples) == 0 || c.closed.Load() {
			return
		}

		samples := downmix(bytesToInt16(inputSamples), channels)

		if cb := c.callbackPtr.Load(); cb != nil {
			(*cb)(samples)
		}
		c.safeSend(samples)
	}

	device, err := malgo.InitDevice(c.ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecvFrames})
	if err != nil {
		return fmt.Errorf("init device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("start device: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.running = true
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = c.Stop()
	}()

	return nil
}

// safeSend delivers samples without blocking the audio thread, dropping them
// when the consumer is behind.
func (c *Capture) safeSend(samples []int16) {
	defer func() {
		_ = recover() // channel closed between the flag check and the send
	}()

	if c.closed.Load() {
		return
	}
	select {
	case c.Samples <- samples:
	default:
	}
}

// Read returns the next block of exactly BufferSize samples.
func (c *Capture) Read(ctx context.Context) ([]int16, error) {
	block := int(c.config.BufferSize)
	if block <= 0 {
		block = int(DefaultConfig().BufferSize)
	}

	for len(c.pending) < block {
		select {
		case s, ok := <-c.Samples:
			if !ok {
				return nil, ErrNotRunning
			}
			c.pending = append(c.pending, s...)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]int16, block)
	copy(out, c.pending)
	c.pending = append(c.pending[:0], c.pending[block:]...)
	return out, nil
}

// Stop stops audio capture
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}

	if c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
	}

	c.running = false
	return nil
}

// Close releases all audio resources
func (c *Capture) Close() error {
	c.closed.Store(true)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running && c.device != nil {
		_ = c.device.Stop()
		c.device.Uninit()
		c.device = nil
		c.running = false
	}

	var err error
	if c.ctx != nil {
		if uerr := c.ctx.Uninit(); uerr != nil {
			err = fmt.Errorf("uninit context: %w", uerr)
		}
		c.ctx.Free()
		c.ctx = nil
	}

	c.closeOnce.Do(func() {
		close(c.Samples)
	})
	return err
}

// IsRunning returns true if capture is active
func (c *Capture) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

// bytesToInt16 converts little-endian S16 frames to samples. A trailing odd byte is ignored.
func bytesToInt16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

// downmix averages interleaved channels into mono.
func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for f := range mono {
		sum := 0
		for ch := range channels {
			sum += int(samples[f*channels+ch])
		}
		mono[f] = int16(sum / channels)
	}
	return mono
}
