package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/keyer"
	"github.com/ColonelBlimp/keytrainer/internal/playback"
	"github.com/ColonelBlimp/keytrainer/internal/practice"
)

// replayGap separates the user's keying from the reference when replaying a miss
const replayGap = 400 * time.Millisecond

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func newDrillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drill <target>...",
		Short: "Hear each target, then key it back",
		Long: `Plays every target (a letter, group or phrase), waits for you to key it on the
straight key and scores the answer. Quote multi-word targets.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDrill,
	}
	cmd.Flags().Bool("shuffle", false, "drill the targets in random order")
	cmd.Flags().IntP("repeat", "r", 1, "number of passes over the targets")
	cmd.Flags().Duration("answer", 5*time.Second, "how long to wait for keying to begin")
	cmd.Flags().Bool("replay-misses", true, "after a wrong answer play what you sent, then the target")
	return cmd
}

// drillTargets expands and optionally shuffles the target list.
func drillTargets(args []string, repeat int, shuffle bool) []string {
	var targets []string
	for i := 0; i < max(repeat, 1); i++ {
		pass := append([]string(nil), args...)
		if shuffle {
			pass = lo.Shuffle(pass)
		}
		targets = append(targets, pass...)
	}
	return lo.Map(targets, func(t string, _ int) string {
		return strings.ToUpper(strings.TrimSpace(t))
	})
}

func runDrill(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	shuffle, _ := cmd.Flags().GetBool("shuffle")
	repeat, _ := cmd.Flags().GetInt("repeat")
	answer, _ := cmd.Flags().GetDuration("answer")
	replayMisses, _ := cmd.Flags().GetBool("replay-misses")

	timing, err := timingFor(settings)
	if err != nil {
		return err
	}
	s, err := newSynthesizer(settings, logger)
	if err != nil {
		return err
	}
	det, err := keyer.NewDetector(detectorConfig(settings, timing, logger))
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

	if err := det.Start(ctx, openSource(settings, "")); err != nil {
		return err
	}
	defer func() { _ = det.Stop() }()

	seq := playback.NewSequencer(out, s, logger)
	drill, err := practice.NewDrill(practice.DrillConfig{
		Frequency:     settings.ToneFrequency,
		Timing:        timing,
		LetterTimeout: ms(settings.LetterTimeoutMs),
		PhraseTimeout: ms(settings.PhraseTimeoutMs),
		Poll:          ms(settings.CompletionPollMs),
		AnswerTimeout: answer,
		Logger:        logger,
	}, seq, det)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	drill.OnAttempt = func(a practice.Attempt) {
		printAttempt(w, a)
		if replayMisses && !a.Correct && a.Got != "" {
			if err := seq.Play(ctx, missReplay(a, settings.ToneFrequency, timing)...); err != nil {
				logger.Warn("replay", "error", err)
			}
		}
	}

	res, err := drill.Run(ctx, drillTargets(args, repeat, shuffle))
	renderResult(w, res)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// missReplay plays back what the user keyed followed by the expected pattern.
func missReplay(a practice.Attempt, frequencyHz int, timing cw.Timing) []playback.Element {
	return []playback.Element{
		playback.Silence{Length: replayGap},
		playback.Tone{Pattern: a.Got, Frequency: frequencyHz, Timing: timing},
		playback.Silence{Length: replayGap},
		playback.Tone{Pattern: cw.EncodeText(a.Target), Frequency: frequencyHz, Timing: timing},
	}
}

func printAttempt(w io.Writer, a practice.Attempt) {
	switch {
	case a.TimedOut:
		yellow.Fprintf(w, "%-8s no answer (%s)\n", a.Target, cw.Display(a.Expected))
	case a.Correct:
		green.Fprintf(w, "%-8s ok      %s\n", a.Target, cw.Display(a.Got))
	default:
		red.Fprintf(w, "%-8s wrong   %s, expected %s\n", a.Target, cw.Display(a.Got), cw.Display(a.Expected))
	}
}

func renderResult(w io.Writer, res practice.Result) {
	if len(res.Attempts) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Target", "Expected", "Sent", "Result"})
	for _, a := range res.Attempts {
		result := "ok"
		switch {
		case a.TimedOut:
			result = "no answer"
		case !a.Correct:
			result = "wrong"
		}
		t.AppendRow(table.Row{a.Target, cw.Display(a.Expected), cw.Display(a.Got), result})
	}

	speed := "-"
	if res.WPM > 0 {
		speed = fmt.Sprintf("~%d WPM", res.WPM)
	}
	t.AppendFooter(table.Row{"Score", fmt.Sprintf("%.0f%%", res.Score*100), speed, ""})
	t.Render()

	if misses := practice.Mistakes(res.Attempts); len(misses) > 0 {
		fmt.Fprintf(w, "practice again: %s\n", strings.Join(misses, " "))
	}
}
