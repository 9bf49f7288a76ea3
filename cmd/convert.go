package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/voxstream/internal/convert"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input] [output]",
	Short: "Convert an audio file to raw pipeline PCM",
	Long: `Convert any format ffmpeg understands into 16-bit mono PCM at the
configured sample rate. The output defaults to the input name with a .raw
extension and can be used as a greeting or as a file device capture source.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		output := strings.TrimSuffix(input, filepath.Ext(input)) + ".raw"
		if len(args) == 2 {
			output = args[1]
		}

		fmt.Printf("Converting %s -> %s (%d Hz mono s16le)\n", input, output, cfg.Audio.SampleRate)
		if err := convert.New(cfg).ToFile(cmd.Context(), input, output); err != nil {
			return fmt.Errorf("conversion failed: %w", err)
		}

		fmt.Println("Conversion completed successfully")
		return nil
	},
}
