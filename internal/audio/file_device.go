package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileDevice reads capture audio from a WAV or raw PCM file and appends
// played audio to a raw PCM file. It stands in for real hardware in dry runs.
type FileDevice struct {
	sampleRate int
	loop       bool
	realtime   bool

	readMu   sync.Mutex
	capture  []byte
	readPos  int
	lastRead time.Time

	writeMu sync.Mutex
	out     *os.File
}

// NewFileDevice opens the given files. Either path may be empty.
// With realtime set, reads are paced to the sample rate.
func NewFileDevice(sampleRate int, capturePath, playbackPath string, loop, realtime bool) (*FileDevice, error) {
	d := &FileDevice{sampleRate: sampleRate, loop: loop, realtime: realtime}

	if capturePath != "" {
		pcm, err := LoadPCM(capturePath, sampleRate)
		if err != nil {
			return nil, err
		}
		d.capture = pcm
	}

	if playbackPath != "" {
		f, err := os.OpenFile(playbackPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open playback file: %w", err)
		}
		d.out = f
	}
	return d, nil
}

// LoadPCM reads a WAV file or headerless S16LE file. WAV files must match sampleRate.
func LoadPCM(path string, sampleRate int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		pcm, info, err := DecodeWAV(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if info.SampleRate != sampleRate {
			return nil, fmt.Errorf("%s has sample rate %d, expected %d", path, info.SampleRate, sampleRate)
		}
		return pcm, nil
	}
	return data[:len(data)&^1], nil
}

// Read implements Device. It returns io.EOF once a non-looping file is exhausted.
func (d *FileDevice) Read(ctx context.Context, p []byte) (int, error) {
	d.readMu.Lock()
	defer d.readMu.Unlock()

	if len(d.capture) == 0 {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	if d.realtime {
		if wait := time.Until(d.lastRead.Add(BytesDuration(d.sampleRate, len(p)))); wait > 0 {
			if !sleepCtx(ctx, wait) {
				return 0, ctx.Err()
			}
		}
		d.lastRead = time.Now()
	}

	n := 0
	for n < len(p) {
		if d.readPos >= len(d.capture) {
			if !d.loop {
				break
			}
			d.readPos = 0
		}
		c := copy(p[n:], d.capture[d.readPos:])
		d.readPos += c
		n += c
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements Device.
func (d *FileDevice) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.out == nil {
		return len(p), nil
	}
	return d.out.Write(p)
}

// Stop implements Device. It flushes the playback file.
func (d *FileDevice) Stop() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.out == nil {
		return nil
	}
	return d.out.Sync()
}

// Close closes the playback file.
func (d *FileDevice) Close() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.out == nil {
		return nil
	}
	err := d.out.Close()
	d.out = nil
	return err
}
