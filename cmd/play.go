package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/playback"
)

func newPlayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play <text>...",
		Short: "Play text or a pattern through the speaker",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPlay,
	}
	cmd.Flags().BoolP("pattern", "p", false, "treat arguments as a dit/dah pattern instead of text")
	cmd.Flags().IntP("repeat", "r", 1, "number of times to play")
	cmd.Flags().Duration("pause", time.Second, "silence between repeats")
	cmd.Flags().Bool("chime", false, "finish with the success chime")
	return cmd
}

func newToneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tone",
		Short: "Sound a continuous sidetone",
		Long:  `Loops a click-free tone at the configured frequency until the duration passes or Ctrl+C.`,
		Args:  cobra.NoArgs,
		RunE:  runTone,
	}
	cmd.Flags().Duration("duration", 3*time.Second, "how long to sound the tone (0 = until interrupted)")
	return cmd
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// playElements builds the element sequence for play.
func playElements(pattern string, frequencyHz int, timing cw.Timing, repeat int, pause time.Duration, chime bool) []playback.Element {
	var elements []playback.Element
	for i := 0; i < max(repeat, 1); i++ {
		if i > 0 && pause > 0 {
			elements = append(elements, playback.Silence{Length: pause})
		}
		elements = append(elements, playback.Tone{Pattern: pattern, Frequency: frequencyHz, Timing: timing})
	}
	if chime {
		elements = append(elements, playback.Chime{})
	}
	return elements
}

func runPlay(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetBool("pattern")
	repeat, _ := cmd.Flags().GetInt("repeat")
	pause, _ := cmd.Flags().GetDuration("pause")
	chime, _ := cmd.Flags().GetBool("chime")

	pattern, err := targetPattern(args, raw)
	if err != nil {
		return err
	}
	timing, err := timingFor(settings)
	if err != nil {
		return err
	}
	s, err := newSynthesizer(settings, logger)
	if err != nil {
		return err
	}
	out, err := openSink(settings, logger)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	elements := playElements(pattern, settings.ToneFrequency, timing, repeat, pause, chime)
	fmt.Fprintf(cmd.OutOrStdout(), "%s  (%v)\n", cw.Display(pattern), playback.TotalDuration(elements...))

	return playback.NewSequencer(out, s, logger).Play(ctx, elements...)
}

func runTone(cmd *cobra.Command, _ []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")

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
	if err := sidetone.Start(settings.ToneFrequency); err != nil {
		return err
	}
	defer func() { _ = sidetone.Stop() }()

	fmt.Fprintf(cmd.OutOrStdout(), "%d Hz tone, %d cycles per loop\n",
		settings.ToneFrequency, gen.LoopCycles(settings.ToneFrequency))

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return holdTone(ctx, duration)
}

// holdTone waits for d, or until ctx ends when d is zero. Interruption is not an error.
func holdTone(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		<-ctx.Done()
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil
}
