package cmd

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nidsdepoule/roadcore/configs"
	"github.com/nidsdepoule/roadcore/internal/app"
	"github.com/nidsdepoule/roadcore/internal/logging"
	"github.com/nidsdepoule/roadcore/pkg/spotter"
)

var (
	listenInput     string
	listenTemplates string
)

// listenCmd runs the voice pipeline over a recorded PCM file.
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Spot keywords in a raw PCM recording",
	Long: `Run the voice pipeline over a raw audio file: speech segmentation,
MFCC extraction and DTW matching against the enrolled keyword templates.

The input must be signed 16-bit little-endian mono PCM at the configured
sample rate (16 kHz by default). Convert from other formats with ffmpeg:

  ffmpeg -i recording.wav -f s16le -acodec pcm_s16le -ar 16000 -ac 1 out.raw

Examples:
  roadcore listen --input drive.raw
  roadcore listen --input drive.raw --templates ~/.config/roadcore/templates`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVarP(&listenInput, "input", "i", "",
		"raw s16le mono PCM file (required)")
	listenCmd.Flags().StringVar(&listenTemplates, "templates", "",
		"keyword template directory (overrides config)")
	listenCmd.MarkFlagRequired("input")
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if listenTemplates != "" {
		cfg.Spotter.TemplateDir = listenTemplates
	}

	logger := logging.WithFields(logging.Fields{"command": "listen"})

	matches := 0
	pipeline, err := app.NewPipeline(cfg, app.PipelineOptions{
		Keywords: spotter.SinkFunc(func(ev spotter.Event) {
			matches++
			fmt.Printf("KEYWORD  %q  distance=%.3f  similarity=%.2f\n",
				ev.Keyword, ev.Distance, ev.Similarity)
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(listenInput)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	pipeline.Start()
	defer pipeline.Stop()

	frameLen := cfg.VAD.FrameLength
	if frameLen <= 0 {
		frameLen = 160
	}

	reader := bufio.NewReaderSize(f, frameLen*2*64)
	frame := make([]int16, frameLen)
	raw := make([]byte, frameLen*2)
	total := 0

	for {
		if _, err := io.ReadFull(reader, raw); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return fmt.Errorf("failed reading input: %w", err)
		}
		for i := range frame {
			frame[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
		if err := pipeline.PushAudio(frame); err != nil {
			return err
		}
		total++
	}

	pipeline.Stop()

	logger.Info("Listen complete", logging.Fields{
		"frames":  total,
		"matches": matches,
	})
	fmt.Printf("\nProcessed %d frames, %d keyword matches\n", total, matches)
	return nil
}
