package audio

import (
	"context"
	"errors"
	"io"
)

// Run executes the capture task until ctx ends. While recording is enabled
// it reads one capture chunk per iteration; the blocking read paces the loop.
func (m *Manager) Run(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	buf := make([]byte, m.opts.CaptureChunk)
	m.log.Info("Capture task started", "chunk_bytes", len(buf), "sample_rate", m.opts.SampleRate)
	defer m.log.Info("Capture task stopped")

	for ctx.Err() == nil {
		if !m.recording.Load() {
			if !sleepCtx(ctx, m.opts.CaptureIdle) {
				break
			}
			continue
		}

		if err := m.captureOnce(ctx, buf); err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				m.log.Info("Capture source exhausted")
				m.StopRecording()
				continue
			}
			m.stats.deviceReadErrors.Inc()
			m.obs.DeviceError("read")
			m.log.Warn("Capture read failed", "error", err)
			if !sleepCtx(ctx, m.opts.ErrorBackoff) {
				break
			}
		}
	}
	return nil
}

// captureOnce reads a chunk and hands it to the recording buffer and the send queue.
func (m *Manager) captureOnce(ctx context.Context, buf []byte) error {
	n, err := readChunk(ctx, m.dev, buf, m.opts.DeviceTimeout)
	if err != nil {
		return err
	}
	n &^= 1
	if n == 0 {
		return nil
	}
	chunk := buf[:n]

	m.stats.capturedChunks.Inc()
	m.stats.capturedBytes.Add(uint64(n))
	m.obs.ChunkCaptured(n)

	if !m.recording.Load() {
		return nil
	}

	if err := m.rec.Append(chunk); errors.Is(err, ErrRecordingFull) {
		m.stats.recordingDrops.Inc()
		m.obs.Dropped(ReasonRecordingFull, n)
		if !m.recFullLogged.Swap(true) {
			m.log.Warn("Recording buffer full, dropping captured audio", "capacity", m.rec.Capacity())
		}
	}

	if err := m.sendq.TryEnqueue(chunk); errors.Is(err, ErrSendQueueFull) {
		m.stats.sendQueueDrops.Inc()
		m.obs.Dropped(ReasonSendQueueFull, n)
		m.log.Warn("Send queue full, dropping captured chunk", "bytes", n, "queued", m.sendq.Len())
	}
	return nil
}
