package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audiolibrelab/voxstream/internal/config"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int

	// logLevel is shared by every handler so serve can change it on reload.
	logLevel = new(slog.LevelVar)
	logSink  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "voxstream",
	Short: "Voice assistant endpoint audio pipeline",
	Long: `voxstream captures microphone audio, streams it to a voice server over
a websocket and plays the server's spoken reply as it arrives.

Audio devices are PipeWire nodes (pw-record / pw-play) or raw/WAV files
for testing without hardware.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Configure slog based on config and verbose level
		setupLogging(cfg.Logging, verboseLevel)

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		slog.Debug("Configuration loaded", "file", cfgFile, "profile", cfg.Profile)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logSink != nil {
			logSink.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/voxstream.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_profile from file)")
	rootCmd.PersistentFlags().CountVarP(&verboseLevel, "verbose", "v", "verbose output: -v=debug, -vv=debug with PipeWire tracing")

	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(infoCmd)
}

// loadConfig reads the config file. Without --config a missing default file
// is not an error; the built-in defaults are used instead.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadWithProfile(cfgFile, profile)
	}

	path := config.DefaultPath()
	if _, err := os.Stat(path); err != nil {
		if profile != "" {
			return nil, fmt.Errorf("profile %q requested but no config file found at %s", profile, path)
		}
		return config.Default(), nil
	}
	cfgFile = path
	return config.LoadWithProfile(cfgFile, profile)
}

// setupLogging configures slog from the logging section. Any -v overrides the
// configured level.
func setupLogging(lc config.LoggingConfig, verbose int) {
	logLevel.Set(parseLevel(lc.Level))
	if verbose >= 1 {
		logLevel.Set(slog.LevelDebug)
	}

	var w io.Writer
	switch lc.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		lj := &lumberjack.Logger{
			Filename:   lc.Output,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		}
		w = lj
		logSink = lj
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))

	// Set environment variables for PipeWire tracing
	if verbose >= 2 {
		os.Setenv("PIPEWIRE_DEBUG", "3")
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
