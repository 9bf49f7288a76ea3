package cmd

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/audiolibrelab/voxstream/internal/audio"
	"github.com/audiolibrelab/voxstream/internal/metrics"
)

// pipeline is the device, manager and metrics shared by the audio commands.
// The capture task runs from construction until Close.
type pipeline struct {
	dev      audio.CloseableDevice
	mgr      *audio.Manager
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	cancel  context.CancelFunc
	capture conc.WaitGroup
}

func newPipeline() (*pipeline, error) {
	dev, err := audio.NewDevice(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	opts := audio.OptionsFromConfig(cfg)
	opts.Observer = m
	opts.Logger = slog.Default()

	mgr, err := audio.NewManager(dev, opts)
	if err != nil {
		dev.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &pipeline{
		dev:      dev,
		mgr:      mgr,
		registry: reg,
		metrics:  m,
		cancel:   cancel,
	}
	p.capture.Go(func() {
		if err := mgr.Run(ctx); err != nil {
			slog.Error("Capture task failed", "error", err)
		}
	})

	slog.Debug("Audio pipeline ready",
		"backend", audio.ResolveBackend(cfg),
		"sample_rate", opts.SampleRate,
		"feed_chunk", opts.FeedChunk,
		"play_chunk", opts.PlayChunk)
	return p, nil
}

// Close stops playback and capture, then releases the device.
func (p *pipeline) Close() error {
	err := p.mgr.Close()
	p.cancel()
	p.capture.Wait()
	return multierr.Append(err, p.dev.Close())
}
