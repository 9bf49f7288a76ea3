package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/voxstream/internal/audio"
)

var recordCmd = &cobra.Command{
	Use:   "record [output.wav]",
	Short: "Record microphone audio to a WAV file",
	Long: `Capture audio from the configured device into the recording buffer and
save it as a WAV file. Recording ends on Ctrl+C, after --duration, or when the
buffer (audio.recording_seconds) is full.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output := "recording.wav"
		if len(args) == 1 {
			output = args[0]
		}
		duration, _ := cmd.Flags().GetDuration("duration")

		p, err := newPipeline()
		if err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		p.mgr.StartRecording()
		slog.Info("Recording - Press Ctrl+C to stop", "output", output)

		limit := cfg.RecordingBytes()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-ctx.Done():
				break wait
			case <-ticker.C:
				if p.mgr.Stats().RecordingDrops > 0 || len(p.mgr.Recording()) >= limit {
					slog.Info("Recording buffer full")
					break wait
				}
				if !p.mgr.IsRecording() {
					break wait
				}
			}
		}
		p.mgr.StopRecording()

		pcm := p.mgr.Recording()
		if err := writeWAVFile(output, pcm); err != nil {
			return err
		}
		slog.Info("Recording saved", "file", output, "bytes", len(pcm),
			"duration", audio.BytesDuration(cfg.Audio.SampleRate, len(pcm)))
		return nil
	},
}

func writeWAVFile(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := audio.WriteWAV(f, pcm, cfg.Audio.SampleRate); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func init() {
	recordCmd.Flags().DurationP("duration", "d", 0, "stop after this long (default: until Ctrl+C or buffer full)")
}
