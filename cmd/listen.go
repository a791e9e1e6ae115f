package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/keytrainer/internal/config"
	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/keyer"
	"github.com/ColonelBlimp/keytrainer/internal/playback"
)

// peakEvery is how many capture blocks pass between spectrum measurements
const peakEvery = 8

func newListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Decode a straight key from the audio input",
		Long: `Listens to the capture device (or a WAV recording with --replay) and prints
each character as it completes. Editing sensitivity in the config file while
listening takes effect immediately.`,
		Args: cobra.NoArgs,
		RunE: runListen,
	}
	cmd.Flags().String("replay", "", "decode a 16-bit WAV file in real time instead of the capture device")
	cmd.Flags().Duration("timeout", 0, "silence that completes a character (default letter_timeout_ms)")
	cmd.Flags().Bool("sidetone", false, "sound the sidetone while the key is down")
	return cmd
}

func runListen(cmd *cobra.Command, _ []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	replay, _ := cmd.Flags().GetString("replay")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	withSidetone, _ := cmd.Flags().GetBool("sidetone")
	if timeout <= 0 {
		timeout = ms(settings.LetterTimeoutMs)
	}

	timing, err := timingFor(settings)
	if err != nil {
		return err
	}
	det, err := keyer.NewDetector(detectorConfig(settings, timing, logger))
	if err != nil {
		return err
	}
	speed, err := cw.NewSpeedEstimator(timing, cw.DefaultSpeedSmoothing)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if withSidetone {
		gen, err := newToneGenerator(settings)
		if err != nil {
			return err
		}
		out, err := openSink(settings, logger)
		if err != nil {
			return err
		}
		defer func() { _ = out.Close() }()
		sidetone := playback.NewSidetone(out, gen, logger)
		follow, release := sidetone.Follow(ctx, settings.ToneFrequency)
		defer release()
		det.SetTransitionHandler(follow)
	}

	open, peak := withPeak(openSource(settings, replay), settings.CaptureSampleRate, peakEvery)
	if err := det.Start(ctx, open); err != nil {
		return err
	}
	defer func() { _ = det.Stop() }()

	watchSensitivity(det, logger)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "listening at %d WPM, dit/dah boundary %v (Ctrl+C to stop)\n", timing.WPM, timing.DitMax())

	err = decodeLoop(ctx, det, ms(settings.CompletionPollMs), timeout, func(ev keyer.Event) {
		speed.ObserveAll(ev.Elements)
		printEvent(out, ev, speed.WPM(), peak.Frequency())
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchSensitivity pushes sensitivity edits in the config file into det.
func watchSensitivity(det *keyer.Detector, logger *slog.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		settings, err := config.Get()
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		if settings.Sensitivity == det.Sensitivity() {
			return
		}
		if err := det.UpdateSensitivity(settings.Sensitivity); err != nil {
			logger.Warn("sensitivity not applied", "value", settings.Sensitivity, "error", err)
			return
		}
		logger.Info("sensitivity updated", "value", settings.Sensitivity)
	})
	viper.WatchConfig()
}

// decodeLoop delivers completed characters to emit until ctx ends or the
// source runs dry. A character still in progress when the source ends is
// completed immediately.
func decodeLoop(ctx context.Context, det *keyer.Detector, poll, timeout time.Duration, emit func(keyer.Event)) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := det.Watch(watchCtx, poll, timeout)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			emit(ev)
		case <-ticker.C:
			if det.Listening() {
				continue
			}
			cancel()
			for ev := range events {
				emit(ev)
			}
			if ev, ok := det.ForceComplete(); ok {
				emit(ev)
			}
			return det.Err()
		}
	}
}

func printEvent(w io.Writer, ev keyer.Event, wpm int, peakHz float64) {
	line := fmt.Sprintf("%-12s", ev.String())
	if wpm > 0 {
		line += fmt.Sprintf("  ~%d WPM", wpm)
	}
	if peakHz > 0 {
		line += fmt.Sprintf("  %.0f Hz", peakHz)
	}
	fmt.Fprintln(w, line)
}
