package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/voxstream/internal/server"
	"github.com/audiolibrelab/voxstream/internal/session"
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Hold a voice conversation with the server",
	Long: `Connect to the voice server, stream microphone audio to it and play its
replies as they arrive. The connection is re-established after a loss until
interrupted with Ctrl+C. With http.enabled the control server runs alongside.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if url, _ := cmd.Flags().GetString("url"); url != "" {
			cfg.Transport.URL = url
		}
		if greeting, _ := cmd.Flags().GetString("greeting"); greeting != "" {
			cfg.Session.GreetingFile = greeting
		}

		p, err := newPipeline()
		if err != nil {
			return fmt.Errorf("failed to open audio device: %w", err)
		}
		defer p.Close()

		svc := session.New(cfg, p.mgr, session.WebsocketDialer(cfg.Transport), p.metrics)
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		if cfg.HTTP.Enabled {
			srv := server.New(svc, cfgFile, cfg.HTTP.Address, p.metrics, p.registry)
			g.Go(func() error { return srv.Start(gctx) })
		}
		g.Go(func() error {
			slog.Info("Streaming - Press Ctrl+C to stop", "url", cfg.Transport.URL)
			return svc.Serve(gctx)
		})
		if err := g.Wait(); err != nil {
			return fmt.Errorf("stream failed: %w", err)
		}

		stats := p.mgr.Stats()
		slog.Info("Stream finished",
			"captured_bytes", stats.CapturedBytes,
			"played_bytes", stats.BytesPlayed,
			"send_queue_drops", stats.SendQueueDrops)
		return nil
	},
}

func init() {
	streamCmd.Flags().String("url", "", "voice server websocket URL (overrides config)")
	streamCmd.Flags().String("greeting", "", "prompt played when a session starts (overrides config)")
}
