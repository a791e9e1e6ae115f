package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
)

func newTimingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timing [text...]",
		Short: "Show element durations for the configured speed",
		Long: `Prints the dit, dah and gap durations for the configured WPM. Any text
arguments are encoded and their rendered length is shown as well.`,
		RunE: runTiming,
	}
}

func runTiming(cmd *cobra.Command, args []string) error {
	settings, _, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	timing, err := timingFor(settings)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	renderTimingTable(out, timing)

	if len(args) > 0 {
		if err := renderPatternTable(out, timing, args); err != nil {
			return err
		}
	}
	return nil
}

func renderTimingTable(out io.Writer, timing cw.Timing) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%d WPM", timing.WPM))

	t.AppendHeader(table.Row{"Element", "Units", "Duration"})
	t.AppendRow(table.Row{"dit", 1, timing.Dit})
	t.AppendRow(table.Row{"dah", cw.DahDitRatio, timing.Dah})
	t.AppendRow(table.Row{"element gap", cw.IntraCharSpaceRatio, timing.IntraGap})
	t.AppendRow(table.Row{"character gap", cw.InterCharSpaceRatio, timing.InterCharGap})
	t.AppendRow(table.Row{"word gap", cw.WordSpaceRatio, timing.InterWordGap})
	t.AppendSeparator()
	t.AppendRow(table.Row{"dit/dah boundary", cw.DitDahBoundary, timing.DitMax()})

	t.Render()
}

func renderPatternTable(out io.Writer, timing cw.Timing, texts []string) error {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Text", "Pattern", "Duration"})
	for _, text := range texts {
		pattern := cw.EncodeText(text)
		if pattern == "" {
			return fmt.Errorf("%q has no Morse encoding", text)
		}
		d, err := cw.PatternDuration(pattern, timing)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{text, cw.Display(pattern), d})
	}

	t.Render()
	return nil
}
