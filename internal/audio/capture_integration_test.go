//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

// These tests require actual audio hardware and are skipped by default.
// Run with: go test -tags=integration ./internal/audio

func TestListDevices_Integration(t *testing.T) {
	for _, dir := range []Direction{Input, Output} {
		devices, err := ListDevices(dir)
		if err != nil {
			t.Fatalf("ListDevices(%s) error = %v", dir, err)
		}
		t.Logf("Found %d %s devices:", len(devices), dir)
		for _, d := range devices {
			t.Logf("  [%d] %s default=%v", d.Index, d.Name, d.Default)
		}
	}
}

func TestCapture_Open_Read_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	capture, err := Open(ctx, DefaultConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer capture.Close()

	block, err := capture.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(block) != int(DefaultConfig().BufferSize) {
		t.Errorf("Read() returned %d samples, want %d", len(block), DefaultConfig().BufferSize)
	}
}

func TestCapture_Callback_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	called := make(chan struct{})
	capture.SetCallback(func([]int16) {
		select {
		case called <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := capture.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-called:
	case <-ctx.Done():
		t.Error("Timeout waiting for callback")
	}
}

func TestCapture_ContextCancellation_Integration(t *testing.T) {
	capture := New(DefaultConfig())
	defer capture.Close()

	if err := capture.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := capture.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	time.Sleep(100 * time.Millisecond)

	if capture.IsRunning() {
		t.Error("IsRunning() = true after context cancellation")
	}
}

func TestPlayer_Play_Integration(t *testing.T) {
	p, err := NewPlayer(PlayerConfig{DeviceIndex: -1})
	if err != nil {
		t.Fatalf("NewPlayer() error = %v", err)
	}
	defer p.Close()

	s, err := synth.NewSynthesizer(synth.DefaultPatternConfig(), nil)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	buf, err := s.Render(".-", 600, cw.MustTiming(25))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	start := time.Now()
	if err := p.Play(context.Background(), buf); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < buf.Duration() {
		t.Errorf("Play() returned after %v, want at least %v", elapsed, buf.Duration())
	}
}

func TestPlayer_Loop_Integration(t *testing.T) {
	p, err := NewPlayer(PlayerConfig{DeviceIndex: -1})
	if err != nil {
		t.Fatalf("NewPlayer() error = %v", err)
	}
	defer p.Close()

	g, _ := synth.NewToneGenerator(synth.DefaultToneConfig())
	loop, _ := g.BuildLoop(600)

	if err := p.StartLoop(loop); err != nil {
		t.Fatalf("StartLoop() error = %v", err)
	}
	if err := p.StartLoop(loop); err != nil {
		t.Fatalf("repeated StartLoop() error = %v", err)
	}
	time.Sleep(300 * time.Millisecond)
	if err := p.StopLoop(); err != nil {
		t.Errorf("StopLoop() error = %v", err)
	}
	if err := p.StopLoop(); err != nil {
		t.Errorf("repeated StopLoop() error = %v", err)
	}

	dev := p.loopDevice
	if err := p.StartLoop(loop); err != nil {
		t.Fatalf("resumed StartLoop() error = %v", err)
	}
	if p.loopDevice != dev {
		t.Error("resuming the same loop reopened the device")
	}
}
