// Package keyer turns a live audio stream from a straight key into decoded Morse characters.
package keyer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/dsp"
	"github.com/ColonelBlimp/keytrainer/internal/recovery"
)

var (
	ErrAlreadyListening   = errors.New("detector already listening")
	ErrNotListening       = errors.New("detector not listening")
	ErrInvalidSensitivity = errors.New("sensitivity must be a finite value greater than 1.0")
	ErrSourceUnavailable  = errors.New("audio source unavailable")
	ErrInvalidTiming      = errors.New("timing must have a positive dit duration")
)

// telemetryEvery is the number of blocks between debug RMS log lines (~1s at 16 kHz / 512).
const telemetryEvery = 32

// Source delivers fixed-size blocks of mono 16-bit PCM. Read blocks until a block
// is available, the context ends, or the stream is exhausted (io.EOF).
type Source interface {
	Read(ctx context.Context) ([]int16, error)
	Close() error
}

// OpenFunc acquires a Source. The detector owns and closes whatever it returns.
type OpenFunc func(ctx context.Context) (Source, error)

// TransitionFunc is called on every accepted key transition, from the goroutine
// that observed it. It must be fast and non-blocking.
type TransitionFunc func(down bool, at time.Time)

// Config holds configuration for the key detector.
type Config struct {
	// Timing supplies the dit/dah boundary; share it with the synthesizer
	Timing cw.Timing
	// Noise configures the adaptive floor (from config: initial_noise_floor, noise_alpha)
	Noise dsp.NoiseConfig
	// Sensitivity multiplies the noise floor to give the press threshold (from config: sensitivity)
	Sensitivity float64
	// Debounce is the minimum spacing between accepted transitions (from config: debounce_ms)
	Debounce time.Duration
	// Logger defaults to slog.Default()
	Logger *slog.Logger
	// Now defaults to time.Now; tests inject a fake clock
	Now func() time.Time
}

// DefaultConfig returns detector defaults for a 16 kHz capture at 25 WPM.
func DefaultConfig() Config {
	return Config{
		Timing: cw.MustTiming(25),
		Noise: dsp.NoiseConfig{
			InitialFloor: 100,
			Alpha:        0.02,
			QuietRatio:   dsp.DefaultQuietRatio,
		},
		Sensitivity: 2.5,
		Debounce:    10 * time.Millisecond,
	}
}

// AudioMetrics is a read-only snapshot of detector telemetry.
type AudioMetrics struct {
	CurrentRMS float64
	NoiseFloor float64
	Threshold  float64
	KeyDown    bool
}

// Detector is the key-down/key-up state machine. Audio blocks arrive on the
// capture goroutine; Metrics, Pattern and the completion checks may be called
// from any goroutine.
type Detector struct {
	log *slog.Logger
	now func() time.Time

	// Telemetry written by the capture loop, read anywhere
	sensitivity atomicFloat
	rms         atomicFloat
	floor       atomicFloat
	threshold   atomicFloat
	keyDown     atomic.Bool
	listening   atomic.Bool

	onTransition atomic.Pointer[TransitionFunc]

	// mu guards the state machine and the accumulated pattern
	mu          sync.Mutex
	timing      cw.Timing
	noise       *dsp.NoiseTracker
	debouncer   *dsp.Debouncer
	keyDownAt   time.Time
	lastKeyUpAt time.Time
	pattern     []rune
	elements    []time.Duration
	blocks      uint64

	// runMu guards the capture loop lifecycle
	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewDetector validates cfg and returns an idle detector.
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.Timing.Dit <= 0 {
		return nil, ErrInvalidTiming
	}
	if !validSensitivity(cfg.Sensitivity) {
		return nil, ErrInvalidSensitivity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	noise, err := dsp.NewNoiseTracker(cfg.Noise)
	if err != nil {
		return nil, fmt.Errorf("noise tracker: %w", err)
	}
	debouncer, err := dsp.NewDebouncer(cfg.Debounce, cfg.Now())
	if err != nil {
		return nil, fmt.Errorf("debouncer: %w", err)
	}

	d := &Detector{
		log:       cfg.Logger.With("component", "keyer"),
		now:       cfg.Now,
		timing:    cfg.Timing,
		noise:     noise,
		debouncer: debouncer,
	}
	d.sensitivity.Store(cfg.Sensitivity)
	d.floor.Store(noise.Floor())
	d.threshold.Store(noise.Floor() * cfg.Sensitivity)
	return d, nil
}

// SetTransitionHandler sets the callback invoked on each accepted key transition.
func (d *Detector) SetTransitionHandler(fn TransitionFunc) {
	if fn == nil {
		d.onTransition.Store(nil)
	} else {
		d.onTransition.Store(&fn)
	}
}

// Start acquires a source with open and begins the capture loop. If the source
// cannot be acquired the detector stays idle and the error wraps ErrSourceUnavailable.
// A loop that already ended on a read error is reaped first, so the caller can
// simply start again.
func (d *Detector) Start(ctx context.Context, open OpenFunc) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.cancel != nil {
		if d.listening.Load() {
			return ErrAlreadyListening
		}
		d.cancel()
		<-d.done
		d.cancel, d.done = nil, nil
		d.Reset()
	}

	runCtx, cancel := context.WithCancel(ctx)
	src, err := open(runCtx)
	if err != nil {
		cancel()
		d.log.Warn("audio source unavailable", "error", err)
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.err = nil
	d.listening.Store(true)

	go func() {
		defer recovery.HandlePanicFunc(nil)
		d.captureLoop(runCtx, src, done)
	}()

	d.log.Debug("listening started")
	return nil
}

// captureLoop reads blocks until the context ends or the source fails, then
// releases the source.
func (d *Detector) captureLoop(ctx context.Context, src Source, done chan struct{}) {
	defer close(done)
	defer d.listening.Store(false)
	defer func() {
		if err := src.Close(); err != nil {
			d.log.Warn("close audio source", "error", err)
		}
	}()

	for {
		block, err := src.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				d.log.Error("audio read failed", "error", err)
				d.runMu.Lock()
				d.err = err
				d.runMu.Unlock()
			}
			return
		}
		d.ProcessBlock(block)
	}
}

// Stop ends the capture loop, waits for the source to be released and discards
// any partially keyed character.
func (d *Detector) Stop() error {
	d.runMu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.runMu.Unlock()

	if cancel == nil {
		return ErrNotListening
	}
	cancel()
	<-done

	d.Reset()
	d.log.Debug("listening stopped")
	return nil
}

// Listening reports whether the capture loop is running.
func (d *Detector) Listening() bool {
	return d.listening.Load()
}

// Err returns the read error that ended the last capture loop, if any.
func (d *Detector) Err() error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.err
}

// ProcessBlock runs one block through the calibration and transition logic.
func (d *Detector) ProcessBlock(block []int16) {
	rms := dsp.RMS(block)
	now := d.now()

	d.mu.Lock()
	threshold := d.noise.Update(rms, d.sensitivity.Load())
	want := rms > threshold
	changed := d.debouncer.Update(want, now)
	if changed {
		if want {
			d.pressLocked(now)
		} else {
			changed = d.releaseLocked(now)
		}
	}
	floor := d.noise.Floor()
	d.blocks++
	blocks := d.blocks
	d.mu.Unlock()

	d.rms.Store(rms)
	d.floor.Store(floor)
	d.threshold.Store(threshold)

	if changed {
		d.notify(want, now)
	}
	if blocks%telemetryEvery == 0 {
		d.log.Debug("telemetry", "rms", rms, "floor", floor, "threshold", threshold, "key_down", d.keyDown.Load())
	}
}

// OnKeyDown records a manual press, bypassing audio detection.
func (d *Detector) OnKeyDown() {
	now := d.now()
	d.mu.Lock()
	d.pressLocked(now)
	d.mu.Unlock()
	d.notify(true, now)
}

// OnKeyUp records a manual release. A release without a matching press is ignored.
func (d *Detector) OnKeyUp() {
	now := d.now()
	d.mu.Lock()
	ok := d.releaseLocked(now)
	d.mu.Unlock()
	if ok {
		d.notify(false, now)
	}
}

func (d *Detector) pressLocked(now time.Time) {
	d.keyDownAt = now
	d.keyDown.Store(true)
	d.log.Debug("key down")
}

func (d *Detector) releaseLocked(now time.Time) bool {
	if d.keyDownAt.IsZero() {
		return false
	}
	held := now.Sub(d.keyDownAt)
	glyph := d.timing.Classify(held)

	d.pattern = append(d.pattern, glyph)
	d.elements = append(d.elements, held)
	d.keyDownAt = time.Time{}
	d.lastKeyUpAt = now
	d.keyDown.Store(false)

	d.log.Debug("key up", "held", held, "glyph", string(glyph), "pattern", string(d.pattern))
	return true
}

func (d *Detector) notify(down bool, at time.Time) {
	if fn := d.onTransition.Load(); fn != nil {
		(*fn)(down, at)
	}
}

// CheckCompletion emits the accumulated character once more than timeout has
// elapsed since the last release. It reports false while the key is held, when
// nothing has been keyed, or when the timeout has not yet passed.
func (d *Detector) CheckCompletion(timeout time.Duration) (Event, bool) {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pattern) == 0 || d.lastKeyUpAt.IsZero() || !d.keyDownAt.IsZero() {
		return Event{}, false
	}
	if now.Sub(d.lastKeyUpAt) <= timeout {
		return Event{}, false
	}
	ev, _ := d.completeLocked()
	return ev, true
}

// ForceComplete emits the accumulated character immediately. It reports false if
// nothing has been keyed. A press still in progress is discarded.
func (d *Detector) ForceComplete() (Event, bool) {
	d.mu.Lock()
	if len(d.pattern) == 0 {
		released := d.clearLocked()
		d.mu.Unlock()
		d.notifyDiscarded(released)
		return Event{}, false
	}
	ev, released := d.completeLocked()
	d.mu.Unlock()
	d.notifyDiscarded(released)
	return ev, true
}

func (d *Detector) completeLocked() (Event, bool) {
	ev := newEvent(string(d.pattern), d.elements)
	released := d.clearLocked()
	d.log.Debug("character complete", "pattern", ev.Pattern, "character", ev.Character, "recognized", ev.Recognized)
	return ev, released
}

// clearLocked drops the accumulated character and any press in progress. It
// reports whether a press was discarded; the debouncer is returned to the
// released state so the physical release that follows is not reported twice.
func (d *Detector) clearLocked() bool {
	released := !d.keyDownAt.IsZero()
	if d.debouncer.State() {
		d.debouncer.Reset(d.now())
	}
	d.pattern = nil
	d.elements = nil
	d.keyDownAt = time.Time{}
	d.lastKeyUpAt = time.Time{}
	d.keyDown.Store(false)
	return released
}

// notifyDiscarded closes a notified press that was dropped by a reset.
func (d *Detector) notifyDiscarded(released bool) {
	if released {
		d.notify(false, d.now())
	}
}

// Reset discards the in-progress character without stopping capture.
func (d *Detector) Reset() {
	d.mu.Lock()
	released := d.clearLocked()
	d.mu.Unlock()
	d.notifyDiscarded(released)
}

// Pattern returns the standard-glyph pattern keyed so far.
func (d *Detector) Pattern() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.pattern)
}

// Metrics returns a snapshot of the detector telemetry.
func (d *Detector) Metrics() AudioMetrics {
	return AudioMetrics{
		CurrentRMS: d.rms.Load(),
		NoiseFloor: d.floor.Load(),
		Threshold:  d.threshold.Load(),
		KeyDown:    d.keyDown.Load(),
	}
}

// Sensitivity returns the current threshold multiplier.
func (d *Detector) Sensitivity() float64 {
	return d.sensitivity.Load()
}

// UpdateSensitivity changes the threshold multiplier; it takes effect on the next block.
func (d *Detector) UpdateSensitivity(factor float64) error {
	if !validSensitivity(factor) {
		return fmt.Errorf("%w: got %v", ErrInvalidSensitivity, factor)
	}
	d.sensitivity.Store(factor)
	d.log.Info("sensitivity updated", "sensitivity", factor)
	return nil
}

// Timing returns the timing used for classification.
func (d *Detector) Timing() cw.Timing {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timing
}

// SetTiming replaces the timing used for classification, e.g. after a WPM change.
func (d *Detector) SetTiming(t cw.Timing) error {
	if t.Dit <= 0 {
		return ErrInvalidTiming
	}
	d.mu.Lock()
	d.timing = t
	d.mu.Unlock()
	return nil
}

// Watch polls CheckCompletion every interval and delivers completed characters
// until ctx ends. The returned channel is closed when the watcher exits.
func (d *Detector) Watch(ctx context.Context, interval, timeout time.Duration) <-chan Event {
	events := make(chan Event)

	go func() {
		defer recovery.HandlePanicFunc(nil)
		defer close(events)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ev, ok := d.CheckCompletion(timeout)
				if !ok {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events
}

func validSensitivity(f float64) bool {
	return f > 1 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// atomicFloat is a float64 stored as its IEEE 754 bits.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}
