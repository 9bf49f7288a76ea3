package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/voxstream/internal/play"
)

var playCmd = &cobra.Command{
	Use:   "play [file]",
	Short: "Play an audio file on the output device",
	Long: `Play a prompt through the same device path the greeting uses. WAV and raw
PCM files are played directly; other formats are converted with ffmpeg first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
		defer p.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Playing: %s\n", args[0])
		if err := play.New(cfg).Play(ctx, p.mgr, args[0]); err != nil {
			return err
		}
		fmt.Println("Playback completed")
		return nil
	},
}
