// cmd/root.go
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ColonelBlimp/keytrainer/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "keytrainer",
	Short: "Morse code sending and receiving trainer",
	Long: `Plays Morse patterns at a configured speed and listens to a straight key
on the audio input, decoding what you send in real time.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "capture device index (-1 for default)")
	rootCmd.PersistentFlags().IntP("frequency", "f", 600, "tone frequency in Hz")
	rootCmd.PersistentFlags().IntP("wpm", "w", 25, "sending speed in words per minute")
	rootCmd.PersistentFlags().Float64P("sensitivity", "s", 2.5, "key threshold as a multiple of the noise floor")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable debug output")

	bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newTimingCmd(),
		newRenderCmd(),
		newPlayCmd(),
		newToneCmd(),
		newListenCmd(),
		newKeyerTestCmd(),
		newDrillCmd(),
		newDevicesCmd(),
	)
}

// bindFlags lets the global flags override the config file
func bindFlags(flags *pflag.FlagSet) {
	_ = viper.BindPFlag("device_index", flags.Lookup("device"))
	_ = viper.BindPFlag("tone_frequency", flags.Lookup("frequency"))
	_ = viper.BindPFlag("wpm", flags.Lookup("wpm"))
	_ = viper.BindPFlag("sensitivity", flags.Lookup("sensitivity"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings validates the merged configuration and installs the logger.
func loadSettings(cmd *cobra.Command) (*config.Settings, *slog.Logger, error) {
	settings, err := config.Get()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), settings.Debug)
	slog.SetDefault(logger)
	return settings, logger, nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
