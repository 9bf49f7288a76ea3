package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/voxstream/internal/config"
	"github.com/audiolibrelab/voxstream/internal/server"
	"github.com/audiolibrelab/voxstream/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long: `Start the voxstream control server. Sessions are started and stopped over
HTTP (POST /session/start, /session/stop, /session/finish); /status,
/recording.wav and /metrics expose the pipeline state.

The log level follows edits to the config file while the server runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		address := cfg.HTTP.Address
		if a, _ := cmd.Flags().GetString("address"); a != "" {
			address = a
		}

		p, err := newPipeline()
		if err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
		defer p.Close()

		svc := session.New(cfg, p.mgr, session.WebsocketDialer(cfg.Transport), p.metrics)
		defer svc.Close()

		if cfgFile != "" {
			err := config.Watch(cfgFile, profile, func(newCfg *config.Config, err error) {
				if err != nil {
					slog.Warn("Ignoring config reload", "error", err)
					return
				}
				if verboseLevel == 0 {
					logLevel.Set(parseLevel(newCfg.Logging.Level))
				}
				slog.Info("Config reloaded", "log_level", newCfg.Logging.Level)
			})
			if err != nil {
				slog.Warn("Config watch disabled", "error", err)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(svc, cfgFile, address, p.metrics, p.registry)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("address", "", "listen address (overrides http.address)")
}
