package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/voxstream/internal/audio"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio ports and backends",
	Long:  `List the PipeWire ports that can be used as capture_target or playback_target, and the device backends usable on this system.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("🎵 Audio Sources (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")

		fmt.Printf("Backends available: %v (configured: %s)\n\n", audio.GetAvailableBackends(), cfg.Device.Backend)
		return listPipeWireSources()
	},
}

// listPipeWireSources lists available PipeWire ports
func listPipeWireSources() error {
	ports, err := audio.NewPipeWire().ListPorts()
	if err != nil {
		return fmt.Errorf("failed to get PipeWire sources: %w", err)
	}

	fmt.Printf("📋 PIPEWIRE PORTS (%d found):\n", len(ports))
	for i, port := range ports {
		fmt.Printf("  %d. %s\n", i+1, port)
	}

	fmt.Printf("\n💡 PipeWire Usage:\n")
	fmt.Printf("  • Targets are node names or \"node:port\" entries from the list above\n")
	fmt.Printf("  • Example: \"alsa_input.usb-Mic-00.mono-fallback\"\n")
	fmt.Printf("  • Configure in device.capture_target / device.playback_target\n\n")

	return nil
}
