// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	AppName       = "keytrainer"
	ConfigType    = "yaml"
	DefaultConfig = `# Morse keying trainer configuration

# Speed and pitch
wpm: 25                   # Sending speed for playback and dit/dah classification (5-60)
tone_frequency: 600       # Tone pitch in Hz (200-2000)

# Key detection
sensitivity: 2.5          # Threshold = noise floor x sensitivity (1.1-10)
                          # Lower = triggers on quieter keying, Higher = ignores more noise
noise_alpha: 0.02         # Noise floor adaptation rate per quiet block (0.0-1.0)
initial_noise_floor: 100  # Starting noise floor in 16-bit RMS units
debounce_ms: 10           # Minimum time between accepted key transitions

# Character completion
letter_timeout_ms: 800    # Silence that ends a character when drilling single letters
phrase_timeout_ms: 2500   # Silence that ends a character when drilling phrases
completion_poll_ms: 100   # How often completion is checked

# Audio devices
device_index: -1          # Capture device, -1 for default (see 'keytrainer devices')
capture_sample_rate: 16000
capture_block_size: 512   # Samples per detector block
playback_sample_rate: 44100
min_buffer_ms: 200        # Short patterns are padded with silence to this length
loop_span_ms: 500         # Length of the looped sidetone buffer
playback_backend: "malgo" # malgo or beep

# Output
debug: false              # Enable debug logging
`
)

// Backends lists the supported playback_backend values
var Backends = []string{"malgo", "beep"}

// Settings holds all application configuration
type Settings struct {
	// Speed and pitch
	WPM           int `mapstructure:"wpm"`
	ToneFrequency int `mapstructure:"tone_frequency"`

	// Key detection
	Sensitivity       float64 `mapstructure:"sensitivity"`
	NoiseAlpha        float64 `mapstructure:"noise_alpha"`
	InitialNoiseFloor float64 `mapstructure:"initial_noise_floor"`
	DebounceMs        int     `mapstructure:"debounce_ms"`

	// Character completion
	LetterTimeoutMs  int `mapstructure:"letter_timeout_ms"`
	PhraseTimeoutMs  int `mapstructure:"phrase_timeout_ms"`
	CompletionPollMs int `mapstructure:"completion_poll_ms"`

	// Audio devices
	DeviceIndex        int    `mapstructure:"device_index"`
	CaptureSampleRate  int    `mapstructure:"capture_sample_rate"`
	CaptureBlockSize   int    `mapstructure:"capture_block_size"`
	PlaybackSampleRate int    `mapstructure:"playback_sample_rate"`
	MinBufferMs        int    `mapstructure:"min_buffer_ms"`
	LoopSpanMs         int    `mapstructure:"loop_span_ms"`
	PlaybackBackend    string `mapstructure:"playback_backend"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers the default value of every key
func SetDefaults() {
	viper.SetDefault("wpm", 25)
	viper.SetDefault("tone_frequency", 600)
	viper.SetDefault("sensitivity", 2.5)
	viper.SetDefault("noise_alpha", 0.02)
	viper.SetDefault("initial_noise_floor", 100.0)
	viper.SetDefault("debounce_ms", 10)
	viper.SetDefault("letter_timeout_ms", 800)
	viper.SetDefault("phrase_timeout_ms", 2500)
	viper.SetDefault("completion_poll_ms", 100)
	viper.SetDefault("device_index", -1)
	viper.SetDefault("capture_sample_rate", 16000)
	viper.SetDefault("capture_block_size", 512)
	viper.SetDefault("playback_sample_rate", 44100)
	viper.SetDefault("min_buffer_ms", 200)
	viper.SetDefault("loop_span_ms", 500)
	viper.SetDefault("playback_backend", "malgo")
	viper.SetDefault("debug", false)
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/keytrainer/
func Init() error {
	SetDefaults()

	viper.SetConfigType(ConfigType)
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// .config.yaml first, then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("read config: %w", err)
		}
		if err = ensureConfigExists(filepath.Join(configDir, AppName)); err != nil {
			return err
		}
		if err = viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges
func (s *Settings) Validate() error {
	var errs []error

	// Speed and pitch
	if s.WPM < 5 || s.WPM > 60 {
		errs = append(errs, fmt.Errorf("wpm must be between 5 and 60, got %d", s.WPM))
	}
	if s.ToneFrequency < 200 || s.ToneFrequency > 2000 {
		errs = append(errs, fmt.Errorf("tone_frequency must be between 200 and 2000 Hz, got %d", s.ToneFrequency))
	}

	// Key detection
	if s.Sensitivity < 1.1 || s.Sensitivity > 10 {
		errs = append(errs, fmt.Errorf("sensitivity must be between 1.1 and 10, got %v", s.Sensitivity))
	}
	if s.NoiseAlpha <= 0 || s.NoiseAlpha >= 1 {
		errs = append(errs, fmt.Errorf("noise_alpha must be greater than 0.0 and less than 1.0, got %v", s.NoiseAlpha))
	}
	if s.InitialNoiseFloor <= 0 {
		errs = append(errs, fmt.Errorf("initial_noise_floor must be positive, got %v", s.InitialNoiseFloor))
	}
	if s.DebounceMs < 0 || s.DebounceMs > 100 {
		errs = append(errs, fmt.Errorf("debounce_ms must be between 0 and 100, got %d", s.DebounceMs))
	}

	// Character completion
	if s.LetterTimeoutMs < 100 || s.LetterTimeoutMs > 10000 {
		errs = append(errs, fmt.Errorf("letter_timeout_ms must be between 100 and 10000, got %d", s.LetterTimeoutMs))
	}
	if s.PhraseTimeoutMs < 100 || s.PhraseTimeoutMs > 10000 {
		errs = append(errs, fmt.Errorf("phrase_timeout_ms must be between 100 and 10000, got %d", s.PhraseTimeoutMs))
	}
	if s.PhraseTimeoutMs < s.LetterTimeoutMs {
		errs = append(errs, fmt.Errorf("phrase_timeout_ms (%d) must not be shorter than letter_timeout_ms (%d)", s.PhraseTimeoutMs, s.LetterTimeoutMs))
	}
	if s.CompletionPollMs < 10 || s.CompletionPollMs > 1000 {
		errs = append(errs, fmt.Errorf("completion_poll_ms must be between 10 and 1000, got %d", s.CompletionPollMs))
	}

	// Audio devices
	if s.DeviceIndex < -1 {
		errs = append(errs, fmt.Errorf("device_index must be -1 or a device index, got %d", s.DeviceIndex))
	}
	if s.CaptureSampleRate < 8000 || s.CaptureSampleRate > 48000 {
		errs = append(errs, fmt.Errorf("capture_sample_rate must be between 8000 and 48000 Hz, got %d", s.CaptureSampleRate))
	}
	if s.CaptureBlockSize < 64 || s.CaptureBlockSize > 8192 {
		errs = append(errs, fmt.Errorf("capture_block_size must be between 64 and 8192, got %d", s.CaptureBlockSize))
	}
	if s.PlaybackSampleRate < 8000 || s.PlaybackSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("playback_sample_rate must be between 8000 and 192000 Hz, got %d", s.PlaybackSampleRate))
	}
	if s.MinBufferMs < 0 || s.MinBufferMs > 2000 {
		errs = append(errs, fmt.Errorf("min_buffer_ms must be between 0 and 2000, got %d", s.MinBufferMs))
	}
	if s.LoopSpanMs < 50 || s.LoopSpanMs > 5000 {
		errs = append(errs, fmt.Errorf("loop_span_ms must be between 50 and 5000, got %d", s.LoopSpanMs))
	}
	if !lo.Contains(Backends, s.PlaybackBackend) {
		errs = append(errs, fmt.Errorf("playback_backend must be one of %v, got %q", Backends, s.PlaybackBackend))
	}

	// Nyquist check: the tone must be representable at the playback rate
	if s.ToneFrequency*2 >= s.PlaybackSampleRate {
		errs = append(errs, fmt.Errorf("tone_frequency (%d Hz) must be less than Nyquist frequency (%d Hz)", s.ToneFrequency, s.PlaybackSampleRate/2))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
