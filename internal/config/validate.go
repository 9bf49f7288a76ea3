package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const bytesPerSample = 2

// Validate checks each section and reports the first problem found.
func (c *Config) Validate() error {
	if err := c.Audio.validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Device.validate(); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if err := c.Transport.validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.Logging.validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.HTTP.Enabled && c.HTTP.Address == "" {
		return fmt.Errorf("http: address is required when enabled")
	}
	return nil
}

func (a AudioConfig) validate() error {
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000, got %d", a.SampleRate)
	}
	if a.RecordingSeconds <= 0 {
		return fmt.Errorf("recording_seconds must be positive, got %d", a.RecordingSeconds)
	}
	if a.RingCapacity <= 0 || a.RingCapacity%bytesPerSample != 0 {
		return fmt.Errorf("ring_capacity must be a positive even number, got %d", a.RingCapacity)
	}
	if a.SendQueueSize <= 0 {
		return fmt.Errorf("send_queue_size must be positive, got %d", a.SendQueueSize)
	}
	if a.FeedQueueSize <= 0 {
		return fmt.Errorf("feed_queue_size must be positive, got %d", a.FeedQueueSize)
	}

	for name, d := range map[string]time.Duration{
		"capture_chunk": a.CaptureChunk,
		"feed_chunk":    a.FeedChunk,
		"play_chunk":    a.PlayChunk,
	} {
		n := durationBytes(a.SampleRate, d)
		if n <= 0 {
			return fmt.Errorf("%s %s is shorter than one sample", name, d)
		}
		if n > a.RingCapacity && name != "capture_chunk" {
			return fmt.Errorf("%s %s (%d bytes) does not fit in ring_capacity %d", name, d, n, a.RingCapacity)
		}
	}

	if a.DeviceTimeout <= 0 {
		return fmt.Errorf("device_timeout must be positive, got %s", a.DeviceTimeout)
	}
	if a.MinPayload < 0 || a.VariationThreshold < 0 || a.DrainLimit < 0 || a.Prime < 0 {
		return fmt.Errorf("min_payload, variation_threshold, drain_limit and prime must not be negative")
	}
	return nil
}

func (d DeviceConfig) validate() error {
	switch strings.ToLower(d.Backend) {
	case "pipewire", "auto":
	case "file":
		if d.CaptureFile == "" && d.PlaybackFile == "" {
			return fmt.Errorf("file backend needs capture_file or playback_file")
		}
	default:
		return fmt.Errorf("backend must be 'pipewire', 'file' or 'auto', got: %s", d.Backend)
	}

	for _, target := range []string{d.CaptureTarget, d.PlaybackTarget} {
		if !isValidTarget(target) {
			return fmt.Errorf("invalid target '%s', expected a node name or 'device:port'", target)
		}
	}
	return nil
}

func (t TransportConfig) validate() error {
	if t.URL == "" {
		return nil
	}
	u, err := url.Parse(t.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("url scheme must be ws or wss, got: %s", u.Scheme)
	}
	if t.DialTimeout < 0 || t.WriteTimeout < 0 || t.ReconnectDelay < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (l LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got: %s", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be text or json, got: %s", l.Format)
	}
	return nil
}

// isValidTarget accepts an empty target, a PipeWire node name or a
// JACK-style "device:port" name.
func isValidTarget(target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return true
	}

	if idx := strings.LastIndex(target, ":"); idx != -1 {
		device := strings.TrimSpace(target[:idx])
		port := strings.TrimSpace(target[idx+1:])
		return device != "" && port != ""
	}
	return !strings.ContainsAny(target, " \t")
}

func durationBytes(sampleRate int, d time.Duration) int {
	samples := int(int64(sampleRate) * int64(d) / int64(time.Second))
	return samples * bytesPerSample
}

// CaptureChunkBytes is the size of one capture read.
func (c *Config) CaptureChunkBytes() int {
	return durationBytes(c.Audio.SampleRate, c.Audio.CaptureChunk)
}

// FeedChunkBytes is the threshold at which fed audio is played directly.
func (c *Config) FeedChunkBytes() int {
	return durationBytes(c.Audio.SampleRate, c.Audio.FeedChunk)
}

// PlayChunkBytes is the size of one ring playback write.
func (c *Config) PlayChunkBytes() int {
	return durationBytes(c.Audio.SampleRate, c.Audio.PlayChunk)
}

// RecordingBytes is the capacity of the recording buffer.
func (c *Config) RecordingBytes() int {
	return c.Audio.SampleRate * bytesPerSample * c.Audio.RecordingSeconds
}

// PrimeBytes is the amount of silence written when a stream starts.
func (c *Config) PrimeBytes() int {
	return durationBytes(c.Audio.SampleRate, c.Audio.Prime)
}
