// Package configs holds the application configuration tree loaded through
// viper from file, environment and flags.
package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/nidsdepoule/roadcore/pkg/impact"
	"github.com/nidsdepoule/roadcore/pkg/mfcc"
	"github.com/nidsdepoule/roadcore/pkg/stability"
	"github.com/nidsdepoule/roadcore/pkg/vad"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose"`
	LogLevel string `mapstructure:"log_level"`

	// Detection pipelines
	Impact    impact.Config    `mapstructure:"impact"`
	Stability stability.Config `mapstructure:"stability"`

	// Audio pipeline
	Audio   mfcc.Config   `mapstructure:"audio"`
	VAD     vad.Config    `mapstructure:"vad"`
	Spotter SpotterConfig `mapstructure:"spotter"`

	// Hit reporting
	Report ReportConfig `mapstructure:"report"`
}

// SpotterConfig contains keyword spotting settings
type SpotterConfig struct {
	MatchThreshold float64       `mapstructure:"match_threshold"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
	QueueSize      int           `mapstructure:"queue_size"`
	TemplateDir    string        `mapstructure:"template_dir"`
}

// ReportConfig contains hit upload settings
type ReportConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	AppVersion int           `mapstructure:"app_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxPending int           `mapstructure:"max_pending"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if config.Impact.ThresholdFactor < 1 {
		return fmt.Errorf("impact threshold factor must be at least 1")
	}
	if config.Impact.MinMagnitudeMg <= 0 {
		return fmt.Errorf("impact minimum magnitude must be positive")
	}
	if config.Impact.CooldownMs < 0 {
		return fmt.Errorf("impact cooldown cannot be negative")
	}
	if config.Impact.WaveformSamples <= 0 || config.Impact.WaveformSamples > config.Impact.BufferSize {
		return fmt.Errorf("waveform samples must be positive and fit the buffer")
	}

	if config.Stability.SampleRateHz <= 0 {
		return fmt.Errorf("stability sample rate must be positive")
	}
	if config.Stability.StableSeconds <= 0 {
		return fmt.Errorf("stability window must be positive")
	}

	if config.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive")
	}
	if config.Audio.FFTSize&(config.Audio.FFTSize-1) != 0 {
		return fmt.Errorf("audio fft size must be a power of two")
	}
	if config.Audio.FFTSize < config.Audio.FrameLength {
		return fmt.Errorf("audio fft size must cover the frame length")
	}

	if config.VAD.StartFrames <= 0 || config.VAD.EndFrames <= 0 {
		return fmt.Errorf("vad hysteresis frame counts must be positive")
	}
	if config.VAD.MaxSegmentFrames < config.VAD.MinSegmentFrames {
		return fmt.Errorf("vad max segment frames must be at least the minimum")
	}

	if config.Spotter.MatchThreshold <= 0 {
		return fmt.Errorf("spotter match threshold must be positive")
	}

	return nil
}
