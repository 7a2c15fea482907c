package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nidsdepoule/roadcore/configs"
)

// configTestCmd represents the config test command
var configTestCmd = &cobra.Command{
	Use:   "config-test",
	Short: "Test and display all configuration values",
	Long: `Test configuration loading and display all values to verify proper parsing.

This command loads the configuration and displays all values in a structured format
to help verify that your YAML configuration is being parsed correctly.

Examples:
  # Test with default config file
  roadcore config-test

  # Test with specific config file
  roadcore --config /path/to/config.yaml config-test`,
	RunE: runConfigTest,
}

func init() {
	rootCmd.AddCommand(configTestCmd)
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	fmt.Println("ROADCORE CONFIGURATION TEST")
	fmt.Println(strings.Repeat("=", 80))

	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	printSection("APPLICATION SETTINGS")
	printKeyValue("Verbose", fmt.Sprintf("%t", config.Verbose))
	printKeyValue("Log Level", config.LogLevel)

	printSection("IMPACT DETECTOR")
	printKeyValue("Threshold Factor", fmt.Sprintf("%.2f", config.Impact.ThresholdFactor))
	printKeyValue("Min Magnitude", fmt.Sprintf("%d mg", config.Impact.MinMagnitudeMg))
	printKeyValue("Cooldown", fmt.Sprintf("%d ms", config.Impact.CooldownMs))
	printKeyValue("Waveform Samples", fmt.Sprintf("%d", config.Impact.WaveformSamples))
	printKeyValue("Buffer Size", fmt.Sprintf("%d samples", config.Impact.BufferSize))
	printKeyValue("Min Samples", fmt.Sprintf("%d", config.Impact.MinSamples))

	printSection("STABILITY DETECTOR")
	printKeyValue("Stable Seconds", fmt.Sprintf("%d s", config.Stability.StableSeconds))
	printKeyValue("Sample Rate", fmt.Sprintf("%d Hz", config.Stability.SampleRateHz))
	printKeyValue("Max Drift", fmt.Sprintf("%.1f mg", config.Stability.MaxDriftMg))
	printKeyValue("Min Speed", fmt.Sprintf("%.1f m/s", config.Stability.MinSpeedMps))

	printSection("AUDIO FEATURES")
	printKeyValue("Sample Rate", fmt.Sprintf("%d Hz", config.Audio.SampleRate))
	printKeyValue("Frame Length", fmt.Sprintf("%d samples", config.Audio.FrameLength))
	printKeyValue("Hop Length", fmt.Sprintf("%d samples", config.Audio.HopLength))
	printKeyValue("FFT Size", fmt.Sprintf("%d", config.Audio.FFTSize))
	printKeyValue("Mel Filters", fmt.Sprintf("%d", config.Audio.NumFilters))
	printKeyValue("Coefficients", fmt.Sprintf("%d", config.Audio.NumCoeffs))
	printKeyValue("Pre-emphasis", fmt.Sprintf("%.2f", config.Audio.PreEmphasis))

	printSection("VOICE ACTIVITY DETECTION")
	printKeyValue("Frame Length", fmt.Sprintf("%d samples", config.VAD.FrameLength))
	printKeyValue("Start Frames", fmt.Sprintf("%d", config.VAD.StartFrames))
	printKeyValue("End Frames", fmt.Sprintf("%d", config.VAD.EndFrames))
	printKeyValue("Min Segment", fmt.Sprintf("%d frames", config.VAD.MinSegmentFrames))
	printKeyValue("Max Segment", fmt.Sprintf("%d frames", config.VAD.MaxSegmentFrames))
	printKeyValue("Energy Threshold", fmt.Sprintf("%.4f", config.VAD.EnergyThreshold))

	printSection("KEYWORD SPOTTER")
	printKeyValue("Match Threshold", fmt.Sprintf("%.1f", config.Spotter.MatchThreshold))
	printKeyValue("Cooldown", config.Spotter.Cooldown.String())
	printKeyValue("Queue Size", fmt.Sprintf("%d", config.Spotter.QueueSize))
	printKeyValue("Template Dir", config.Spotter.TemplateDir)

	printSection("REPORTING")
	printKeyValue("Server URL", config.Report.ServerURL)
	printKeyValue("App Version", fmt.Sprintf("%d", config.Report.AppVersion))
	printKeyValue("Timeout", config.Report.Timeout.String())
	printKeyValue("Max Pending", fmt.Sprintf("%d", config.Report.MaxPending))

	fmt.Println()
	fmt.Println(strings.Repeat("-", 80))
	fmt.Println("CONFIGURATION TEST COMPLETED SUCCESSFULLY")
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Printf("Config file: %s\n", used)
	} else {
		fmt.Println("Config file: (defaults, no file found)")
	}
	fmt.Println(strings.Repeat("=", 80))

	return nil
}

func printSection(title string) {
	fmt.Printf("\n%s\n", title)
	fmt.Println(strings.Repeat("-", len(title)))
}

func printKeyValue(key, value string) {
	fmt.Printf("%-25s %s\n", key+":", value)
}
