package audio

import (
	"bytes"
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeDevice records every write and serves reads from a channel.
type fakeDevice struct {
	mu       sync.Mutex
	writes   [][]byte
	stops    int
	writeErr error
	stopErr  error
	block    bool

	// delay slows every write; writing receives a value as each write begins.
	delay   time.Duration
	writing chan struct{}

	reads chan []byte
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{reads: make(chan []byte, 64)}
}

func (f *fakeDevice) Read(ctx context.Context, p []byte) (int, error) {
	select {
	case b := <-f.reads:
		return copy(p, b), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeDevice) Write(ctx context.Context, p []byte) (int, error) {
	f.mu.Lock()
	block, werr, delay := f.block, f.writeErr, f.delay
	f.mu.Unlock()

	if f.writing != nil {
		select {
		case f.writing <- struct{}{}:
		default:
		}
	}
	if delay > 0 && !sleepCtx(ctx, delay) {
		return 0, ctx.Err()
	}
	if block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if werr != nil {
		return 0, werr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeDevice) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopErr
}

func (f *fakeDevice) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

func (f *fakeDevice) Played() []byte {
	return bytes.Join(f.Writes(), nil)
}

func (f *fakeDevice) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// slowDevice returns a device whose writes each take d.
func slowDevice(d time.Duration) *fakeDevice {
	f := newFakeDevice()
	f.delay = d
	f.writing = make(chan struct{}, 1)
	return f
}

func (f *fakeDevice) setWriteErr(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// tone returns n bytes of a 440 Hz sine at 16 kHz.
func tone(n int) []byte {
	samples := make([]int16, n/BytesPerSample)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return SamplesToBytes(samples)
}

// flat returns n bytes of a constant sample value.
func flat(n int, v int16) []byte {
	samples := make([]int16, n/BytesPerSample)
	for i := range samples {
		samples[i] = v
	}
	return SamplesToBytes(samples)
}

func testOptions() Options {
	opts := DefaultOptions(16000)
	opts.ErrorBackoff = time.Millisecond
	return opts
}

func newTestManager(t *testing.T, dev Device, mutate func(*Options)) *Manager {
	t.Helper()
	opts := testOptions()
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewManager(dev, opts)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}
