package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/voxstream/internal/audio"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the resolved audio geometry and device selection",
	Long:  `Display the resolved profile with every duration converted to the byte sizes the pipeline actually uses.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := audio.OptionsFromConfig(cfg)
		rate := opts.SampleRate

		fmt.Printf("=== PROFILE ===\n")
		fmt.Printf("profile: %s\n", cfg.Profile)
		fmt.Printf("config_file: %s\n", displayPath(cfgFile))

		fmt.Printf("\n[Device]\n")
		fmt.Printf("backend: %s (resolved: %s)\n", cfg.Device.Backend, audio.ResolveBackend(cfg))
		fmt.Printf("capture: %s\n", displayPath(firstNonEmpty(cfg.Device.CaptureFile, cfg.Device.CaptureTarget)))
		fmt.Printf("playback: %s\n", displayPath(firstNonEmpty(cfg.Device.PlaybackFile, cfg.Device.PlaybackTarget)))

		fmt.Printf("\n[Capture]\n")
		fmt.Printf("sample_rate: %d Hz (%d bytes/s)\n", rate, audio.ByteRate(rate))
		fmt.Printf("capture_chunk: %d bytes (%s)\n", opts.CaptureChunk, audio.BytesDuration(rate, opts.CaptureChunk))
		fmt.Printf("recording_buffer: %d bytes (%s)\n", opts.RecordingBytes, audio.BytesDuration(rate, opts.RecordingBytes))
		fmt.Printf("send_queue: %d chunks\n", opts.SendQueueSize)

		fmt.Printf("\n[Playback]\n")
		fmt.Printf("feed_chunk: %d bytes (%s)\n", opts.FeedChunk, audio.BytesDuration(rate, opts.FeedChunk))
		fmt.Printf("play_chunk: %d bytes (%s)\n", opts.PlayChunk, audio.BytesDuration(rate, opts.PlayChunk))
		fmt.Printf("ring_capacity: %d bytes (%s)\n", opts.RingCapacity, audio.BytesDuration(rate, opts.RingCapacity))
		fmt.Printf("drain_limit: %d bytes (%s)\n", opts.DrainLimit, audio.BytesDuration(rate, opts.DrainLimit))
		fmt.Printf("prime: %d bytes\n", opts.PrimeBytes)
		fmt.Printf("min_payload: %d bytes, variation_threshold: %d\n", opts.MinPayload, opts.VariationThreshold)

		fmt.Printf("\n[Transport]\n")
		fmt.Printf("url: %s\n", cfg.Transport.URL)
		fmt.Printf("greeting: %s\n", displayPath(cfg.Session.GreetingFile))
		return nil
	},
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func displayPath(p string) string {
	if p == "" {
		return "(none)"
	}
	return p
}
