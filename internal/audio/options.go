package audio

import (
	"fmt"
	"log/slog"
	"time"
)

// Options sizes the buffers and timings of a Manager. Sizes are in bytes.
type Options struct {
	SampleRate int

	RecordingBytes int
	CaptureChunk   int
	CaptureIdle    time.Duration
	SendQueueSize  int

	FeedChunk          int
	PlayChunk          int
	RingCapacity       int
	FeedQueueSize      int
	MinPayload         int
	VariationThreshold int
	DrainLimit         int
	PrimeBytes         int

	ShortWait       time.Duration
	IdleWait        time.Duration
	DeviceTimeout   time.Duration
	ErrorBackoff    time.Duration
	MaxDeviceErrors int

	Observer Observer
	Logger   *slog.Logger
}

// DefaultOptions returns the stock geometry for a sample rate:
// 20 ms capture chunks, 25 ms playback chunks, a 64 KiB ring and a 10 s recording.
func DefaultOptions(sampleRate int) Options {
	return Options{
		SampleRate:         sampleRate,
		RecordingBytes:     ByteRate(sampleRate) * 10,
		CaptureChunk:       DurationBytes(sampleRate, 20*time.Millisecond),
		CaptureIdle:        100 * time.Millisecond,
		SendQueueSize:      20,
		FeedChunk:          DurationBytes(sampleRate, 25*time.Millisecond),
		PlayChunk:          DurationBytes(sampleRate, 25*time.Millisecond),
		RingCapacity:       65536,
		FeedQueueSize:      8,
		MinPayload:         128,
		VariationThreshold: 30,
		DrainLimit:         16384,
		ShortWait:          3 * time.Millisecond,
		IdleWait:           8 * time.Millisecond,
		DeviceTimeout:      500 * time.Millisecond,
		ErrorBackoff:       50 * time.Millisecond,
		MaxDeviceErrors:    10,
	}
}

func (o Options) validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"sample rate", o.SampleRate},
		{"recording size", o.RecordingBytes},
		{"capture chunk", o.CaptureChunk},
		{"send queue size", o.SendQueueSize},
		{"feed chunk", o.FeedChunk},
		{"play chunk", o.PlayChunk},
		{"ring capacity", o.RingCapacity},
		{"feed queue size", o.FeedQueueSize},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidOptions, p.name, p.value)
		}
	}

	for name, v := range map[string]int{
		"capture chunk": o.CaptureChunk,
		"feed chunk":    o.FeedChunk,
		"play chunk":    o.PlayChunk,
		"prime":         o.PrimeBytes,
	} {
		if v%BytesPerSample != 0 {
			return fmt.Errorf("%w: %s %d is not sample aligned", ErrInvalidOptions, name, v)
		}
	}

	if o.FeedChunk > o.RingCapacity || o.PlayChunk > o.RingCapacity {
		return fmt.Errorf("%w: chunks must fit in the %d byte ring", ErrInvalidOptions, o.RingCapacity)
	}
	if o.DrainLimit < 0 || o.MinPayload < 0 || o.VariationThreshold < 0 || o.PrimeBytes < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidOptions)
	}
	if o.DeviceTimeout <= 0 {
		return fmt.Errorf("%w: device timeout must be positive", ErrInvalidOptions)
	}
	return nil
}
