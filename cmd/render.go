package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/keytrainer/internal/cw"
	"github.com/ColonelBlimp/keytrainer/internal/dsp"
	"github.com/ColonelBlimp/keytrainer/internal/synth"
)

// ErrNoPattern indicates the arguments encode to nothing
var ErrNoPattern = errors.New("nothing to send: no encodable characters")

// offToneRatio places the reference bin used by --verify away from the tone
const offToneRatio = 1.5

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <text>...",
		Short: "Render text or a pattern to a WAV file",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRender,
	}
	cmd.Flags().StringP("out", "o", "pattern.wav", "output WAV file")
	cmd.Flags().BoolP("pattern", "p", false, "treat arguments as a dit/dah pattern instead of text")
	cmd.Flags().Bool("verify", false, "check the rendered pitch with Goertzel and FFT analysis")
	return cmd
}

// targetPattern turns command arguments into a renderable pattern.
func targetPattern(args []string, raw bool) (string, error) {
	var pattern string
	if raw {
		pattern = cw.Normalize(strings.Join(args, string(cw.CharGap)))
	} else {
		pattern = cw.EncodeText(strings.Join(args, " "))
	}
	if pattern == "" {
		return "", ErrNoPattern
	}
	return pattern, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	settings, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	raw, _ := cmd.Flags().GetBool("pattern")
	outPath, _ := cmd.Flags().GetString("out")
	verify, _ := cmd.Flags().GetBool("verify")

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
	buf, err := s.Render(pattern, settings.ToneFrequency, timing)
	if err != nil {
		return err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := synth.WriteWAV(f, buf); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outPath, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %d samples  %v  -> %s\n", cw.Display(pattern), buf.Len(), buf.Duration(), outPath)

	if verify {
		v, err := verifyPitch(buf, settings.ToneFrequency, timing.Dit)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		fmt.Fprintf(out, "peak %.1f Hz  on-tone %.3f  off-tone %.3f\n", v.Peak, v.OnTone, v.OffTone)
		if !v.OK() {
			return fmt.Errorf("verify: energy not concentrated at %d Hz", settings.ToneFrequency)
		}
	}
	return nil
}

// pitchCheck is the outcome of analyzing a rendered buffer.
type pitchCheck struct {
	Expected float64
	Peak     float64
	OnTone   float64
	OffTone  float64
}

// OK reports whether the peak lies within 2% of the expected pitch and the
// tone bin clearly dominates the reference bin.
func (p pitchCheck) OK() bool {
	tolerance := p.Expected * 0.02
	return p.Peak > p.Expected-tolerance && p.Peak < p.Expected+tolerance && p.OnTone > 4*p.OffTone
}

// verifyPitch measures the first element of buf: Goertzel magnitude at the tone
// and at a reference frequency, plus the FFT peak.
func verifyPitch(buf synth.Buffer, frequencyHz int, dit time.Duration) (pitchCheck, error) {
	block := int(dit.Seconds() * float64(buf.SampleRate))
	block = min(block, buf.Len())
	rate := float64(buf.SampleRate)
	check := pitchCheck{Expected: float64(frequencyHz)}

	on, err := dsp.NewGoertzel(dsp.GoertzelConfig{TargetFrequency: float64(frequencyHz), SampleRate: rate, BlockSize: block})
	if err != nil {
		return check, err
	}
	off, err := dsp.NewGoertzel(dsp.GoertzelConfig{TargetFrequency: float64(frequencyHz) * offToneRatio, SampleRate: rate, BlockSize: block})
	if err != nil {
		return check, err
	}
	if check.OnTone, err = on.MagnitudePCM(buf.Samples); err != nil {
		return check, err
	}
	if check.OffTone, err = off.MagnitudePCM(buf.Samples); err != nil {
		return check, err
	}

	peak, err := dsp.PeakFrequency(buf.Samples[:block], rate, peakMinHz, min(peakMaxHz*2, rate/2))
	if err != nil {
		return check, err
	}
	check.Peak = peak.Frequency
	return check, nil
}
