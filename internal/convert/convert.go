package convert

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/audiolibrelab/voxstream/internal/config"
)

// Converter turns arbitrary audio files into the pipeline's raw format:
// 16-bit little-endian mono PCM at the configured sample rate.
type Converter struct {
	ffmpeg     string
	sampleRate int
}

func New(cfg *config.Config) *Converter {
	ffmpeg := cfg.Session.FFmpegPath
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Converter{ffmpeg: ffmpeg, sampleRate: cfg.Audio.SampleRate}
}

func (c *Converter) args(input, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", input,
		"-ar", strconv.Itoa(c.sampleRate),
		"-ac", "1",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-y", // Overwrite output file
		output,
	}
}

// ToFile converts input into a raw PCM file at output.
func (c *Converter) ToFile(ctx context.Context, input, output string) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}

	// Remove existing output file
	os.Remove(output)

	cmd := exec.CommandContext(ctx, c.ffmpeg, c.args(input, output)...)
	slog.Debug("Running FFmpeg for conversion", "command", strings.Join(cmd.Args, " "))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("FFmpeg conversion failed: %w\nOutput: %s", err, string(out))
	}

	// Verify output file was created
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("output file not created: %s", output)
	}

	slog.Info("Converted audio file saved to", "file", output)
	return nil
}

// ToPCM converts input and returns the samples without touching the disk.
func (c *Converter) ToPCM(ctx context.Context, input string) ([]byte, error) {
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input file not found: %s", input)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ffmpeg, c.args(input, "pipe:1")...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running FFmpeg for conversion", "command", strings.Join(cmd.Args, " "))
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("FFmpeg conversion failed: %w\nOutput: %s", err, stderr.String())
	}

	pcm := stdout.Bytes()
	return pcm[:len(pcm)&^1], nil
}
