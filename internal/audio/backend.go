package audio

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/audiolibrelab/voxstream/internal/config"
)

// BackendType represents the type of sample device backend
type BackendType string

const (
	BackendTypePipeWire BackendType = "pipewire"
	BackendTypeFile     BackendType = "file"
	BackendTypeAuto     BackendType = "auto"
)

// CloseableDevice is a Device that holds OS resources.
type CloseableDevice interface {
	Device
	io.Closer
}

// NewDevice creates the sample device selected by the configuration.
func NewDevice(cfg *config.Config) (CloseableDevice, error) {
	backend := ResolveBackend(cfg)
	slog.Debug("Selected audio backend", "backend", backend)

	switch backend {
	case BackendTypeFile:
		dev, err := NewFileDevice(cfg.Audio.SampleRate, cfg.Device.CaptureFile, cfg.Device.PlaybackFile, cfg.Device.Loop, cfg.Device.Realtime)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case BackendTypePipeWire:
		pw := NewPipeWire()
		for _, target := range []string{cfg.Device.CaptureTarget, cfg.Device.PlaybackTarget} {
			if strings.Contains(target, ":") {
				if err := pw.ValidatePort(target); err != nil {
					return nil, fmt.Errorf("invalid PipeWire target: %w", err)
				}
			}
		}
		return NewPipeWireDevice(cfg.Audio.SampleRate, cfg.Device.CaptureTarget, cfg.Device.PlaybackTarget, cfg.Device.Realtime), nil
	default:
		return nil, fmt.Errorf("unsupported audio backend: %s", backend)
	}
}

// ResolveBackend resolves "auto": files win when configured, PipeWire otherwise.
func ResolveBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Device.Backend) {
	case "pipewire":
		return BackendTypePipeWire
	case "file":
		return BackendTypeFile
	}

	if cfg.Device.CaptureFile != "" || cfg.Device.PlaybackFile != "" {
		return BackendTypeFile
	}
	return BackendTypePipeWire
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	backends := []BackendType{BackendTypeFile}

	if _, err := exec.LookPath("pw-record"); err == nil {
		backends = append(backends, BackendTypePipeWire)
	}
	return backends
}

// OptionsFromConfig converts the configured durations into byte geometry.
func OptionsFromConfig(cfg *config.Config) Options {
	a := cfg.Audio
	return Options{
		SampleRate:         a.SampleRate,
		RecordingBytes:     cfg.RecordingBytes(),
		CaptureChunk:       cfg.CaptureChunkBytes(),
		CaptureIdle:        a.CaptureIdle,
		SendQueueSize:      a.SendQueueSize,
		FeedChunk:          cfg.FeedChunkBytes(),
		PlayChunk:          cfg.PlayChunkBytes(),
		RingCapacity:       a.RingCapacity,
		FeedQueueSize:      a.FeedQueueSize,
		MinPayload:         a.MinPayload,
		VariationThreshold: a.VariationThreshold,
		DrainLimit:         a.DrainLimit,
		PrimeBytes:         cfg.PrimeBytes(),
		ShortWait:          a.ShortWait,
		IdleWait:           a.IdleWait,
		DeviceTimeout:      a.DeviceTimeout,
		ErrorBackoff:       a.ErrorBackoff,
		MaxDeviceErrors:    a.MaxDeviceErrors,
	}
}
