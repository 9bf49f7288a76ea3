package audio

import (
	"context"
	"time"
)

// Device is the sample I/O endpoint the pipeline reads captured audio from and
// writes playback audio to. Implementations must return once ctx is done.
type Device interface {
	// Read fills p with captured S16LE mono samples.
	Read(ctx context.Context, p []byte) (int, error)

	// Write plays p, blocking until the device accepted all of it or ctx ends.
	Write(ctx context.Context, p []byte) (int, error)

	// Stop quiesces the output side. The next Write restarts it.
	Stop() error
}

// writeAll writes p to dev with a deadline of base plus the audio duration of p.
func writeAll(ctx context.Context, dev Device, p []byte, sampleRate int, base time.Duration) error {
	if len(p) == 0 {
		return nil
	}
	wctx, cancel := context.WithTimeout(ctx, base+BytesDuration(sampleRate, len(p)))
	defer cancel()

	written := 0
	for written < len(p) {
		n, err := dev.Write(wctx, p[written:])
		written += n
		if err != nil {
			if wctx.Err() == context.DeadlineExceeded {
				return deviceError("write", ErrDeviceTimeout)
			}
			return deviceError("write", err)
		}
		if n == 0 {
			if err := wctx.Err(); err != nil {
				return deviceError("write", ErrDeviceTimeout)
			}
		}
	}
	return nil
}

// readChunk performs one bounded read.
func readChunk(ctx context.Context, dev Device, p []byte, timeout time.Duration) (int, error) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, err := dev.Read(rctx, p)
	if err != nil {
		if rctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return n, deviceError("read", ErrDeviceTimeout)
		}
		return n, deviceError("read", err)
	}
	return n, nil
}
