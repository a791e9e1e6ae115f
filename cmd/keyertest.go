package cmd

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/keytrainer/internal/keyer"
	"github.com/ColonelBlimp/keytrainer/internal/tui"
)

func newKeyerTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyertest",
		Short: "Live meter for tuning key detection",
		Long: `Shows input level, noise floor, threshold and key state while you key.
Use + and - to adjust sensitivity until presses register cleanly.`,
		Args: cobra.NoArgs,
		RunE: runKeyerTest,
	}
	cmd.Flags().String("replay", "", "feed a 16-bit WAV file instead of the capture device")
	return cmd
}

func runKeyerTest(cmd *cobra.Command, _ []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	replay, _ := cmd.Flags().GetString("replay")

	timing, err := timingFor(settings)
	if err != nil {
		return err
	}
	det, err := keyer.NewDetector(detectorConfig(settings, timing, logger))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	open, peak := withPeak(openSource(settings, replay), settings.CaptureSampleRate, peakEvery)
	if err := det.Start(ctx, open); err != nil {
		return err
	}
	defer func() { _ = det.Stop() }()

	watchSensitivity(det, logger)

	cfg := tui.DefaultConfig()
	cfg.Timeout = ms(settings.LetterTimeoutMs)
	cfg.Peak = peak.Frequency

	model := tui.NewModel(det, cfg)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d characters detected, sensitivity %.1f\n", model.Detections(), det.Sensitivity())
	return nil
}
