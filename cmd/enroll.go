package cmd

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nidsdepoule/roadcore/configs"
	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/mfcc"
	"github.com/nidsdepoule/roadcore/pkg/spotter"
)

var (
	enrollKeyword string
	enrollOutDir  string
)

// enrollCmd builds a keyword template from recorded utterances.
var enrollCmd = &cobra.Command{
	Use:   "enroll [recordings...]",
	Short: "Enroll a keyword template from recorded utterances",
	Long: `Build a keyword template from one or more recorded utterances of the
same word. Each recording must be raw s16le mono PCM at the configured
sample rate, trimmed to just the spoken word. Features are extracted from
every recording and stored together as exemplars, so natural variation
between takes improves matching.

Examples:
  roadcore enroll --keyword "pothole" take1.raw take2.raw take3.raw`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().StringVarP(&enrollKeyword, "keyword", "k", "",
		"keyword this template detects (required)")
	enrollCmd.Flags().StringVar(&enrollOutDir, "out-dir", "",
		"template output directory (default: configured template dir)")
	enrollCmd.MarkFlagRequired("keyword")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	outDir := enrollOutDir
	if outDir == "" {
		outDir = cfg.Spotter.TemplateDir
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create template directory: %w", err)
	}

	extractor, err := mfcc.NewExtractor(cfg.Audio)
	if err != nil {
		return fmt.Errorf("failed to build feature extractor: %w", err)
	}

	logger := logging.WithFields(logging.Fields{"command": "enroll"})

	var exemplars [][][]float64
	for _, path := range args {
		pcm, err := readPCM(path)
		if err != nil {
			return err
		}
		features := extractor.Extract(pcm)
		if len(features) == 0 {
			return fmt.Errorf("recording %s is too short for even one frame", path)
		}
		exemplars = append(exemplars, features)
		logger.Debug("Extracted exemplar", logging.Fields{
			"recording": path,
			"frames":    len(features),
		})
	}

	outPath := filepath.Join(outDir, enrollKeyword+".yaml")
	if err := spotter.SaveTemplate(outPath, enrollKeyword, exemplars); err != nil {
		return err
	}

	fmt.Printf("Enrolled %q: %d exemplars -> %s\n", enrollKeyword, len(exemplars), outPath)
	return nil
}

// readPCM loads an entire raw s16le mono recording.
func readPCM(path string) ([]int16, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("recording %s is not s16le aligned (%d bytes); convert with ffmpeg -f s16le", path, len(raw))
	}
	pcm := make([]int16, len(raw)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return pcm, nil
}
