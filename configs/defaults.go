package configs

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values for all components
func SetDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("verbose", false)
	v.SetDefault("log_level", "info")

	// Impact detector defaults (50 Hz accelerometer, 30 s ring)
	v.SetDefault("impact.threshold_factor", 2.5)
	v.SetDefault("impact.min_magnitude_mg", 1800)
	v.SetDefault("impact.cooldown_ms", 3000)
	v.SetDefault("impact.waveform_samples", 150)
	v.SetDefault("impact.buffer_size", 1500)
	v.SetDefault("impact.min_samples", 10)

	// Stability detector defaults
	v.SetDefault("stability.stable_seconds", 3)
	v.SetDefault("stability.sample_rate_hz", 50)
	v.SetDefault("stability.max_drift_mg", 150)
	v.SetDefault("stability.min_speed_mps", 2.0)

	// Audio feature extraction defaults (16 kHz, 25 ms / 10 ms)
	v.SetDefault("audio.sample_rate", 16000)
	v.SetDefault("audio.frame_length", 400)
	v.SetDefault("audio.hop_length", 160)
	v.SetDefault("audio.fft_size", 512)
	v.SetDefault("audio.num_filters", 26)
	v.SetDefault("audio.num_coeffs", 13)
	v.SetDefault("audio.pre_emphasis", 0.97)

	// Voice activity segmentation defaults (10 ms frames)
	v.SetDefault("vad.frame_length", 160)
	v.SetDefault("vad.start_frames", 3)
	v.SetDefault("vad.end_frames", 15)
	v.SetDefault("vad.min_segment_frames", 20)
	v.SetDefault("vad.max_segment_frames", 300)
	v.SetDefault("vad.energy_threshold", 0.015)

	// Keyword spotting defaults
	v.SetDefault("spotter.match_threshold", 180.0)
	v.SetDefault("spotter.cooldown", 2*time.Second)
	v.SetDefault("spotter.queue_size", 8)
	v.SetDefault("spotter.template_dir", "templates")

	// Reporting defaults
	v.SetDefault("report.server_url", "")
	v.SetDefault("report.app_version", 1)
	v.SetDefault("report.timeout", 10*time.Second)
	v.SetDefault("report.max_pending", 100)
}
