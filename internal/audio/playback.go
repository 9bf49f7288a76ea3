package audio

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// playback is the goroutine behind one streaming session. It serves feed
// requests, plays buffered audio in PlayChunk slices and performs the final
// drain when asked to stop.
func (m *Manager) playback(ctx context.Context, s *stream) {
	defer close(s.done)

	if m.opts.PrimeBytes > 0 {
		if err := m.play(ctx, s, make([]byte, m.opts.PrimeBytes)); err != nil {
			m.log.Debug("Priming output failed", "error", err)
		}
	}

	timer := time.NewTimer(m.nextWait())
	defer timer.Stop()

	for {
		select {
		case req := <-s.feeds:
			res, err := m.dispatch(ctx, s, req.data)
			req.reply <- feedReply{res: res, err: err}

		case req := <-s.stop:
			s.err = m.teardown(req.ctx, req.reason)
			return

		case <-timer.C:
			if m.State() == StateActive {
				m.playTick(ctx, s)
			}
			timer.Reset(m.nextWait())

		case <-ctx.Done():
			s.err = m.teardown(context.Background(), "shutdown")
			return
		}
	}
}

func (m *Manager) nextWait() time.Duration {
	if m.ring.Available() > 0 {
		return m.opts.ShortWait
	}
	return m.opts.IdleWait
}

// playTick plays at most one chunk from the ring.
func (m *Manager) playTick(ctx context.Context, s *stream) {
	if m.ring.Available() < m.opts.PlayChunk {
		return
	}

	if off := m.ring.ReadOffset(); off%BytesPerSample != 0 {
		m.stats.corruptions.Inc()
		m.log.Warn("Realigning misaligned ring read offset", "offset", off)
		m.ring.Skip(1)
		if m.ring.Available() < m.opts.PlayChunk {
			return
		}
	}

	if !m.ring.PopExact(s.playBuf) {
		return
	}
	m.obs.RingLevel(m.ring.Available())

	if !Audible(s.playBuf, m.opts.VariationThreshold) {
		m.stats.inaudibleChunks.Inc()
		m.obs.Dropped(ReasonInaudibleChunk, len(s.playBuf))
		return
	}

	if m.State() != StateActive {
		return
	}
	m.play(ctx, s, s.playBuf)
}

// play writes one block to the device and tracks consecutive failures.
func (m *Manager) play(ctx context.Context, s *stream, p []byte) error {
	err := writeAll(ctx, m.dev, p, m.opts.SampleRate, m.opts.DeviceTimeout)
	if err == nil {
		s.errors = 0
		m.stats.chunksPlayed.Inc()
		m.stats.bytesPlayed.Add(uint64(len(p)))
		m.obs.Played(len(p))
		return nil
	}

	s.errors++
	m.stats.deviceWriteErrors.Inc()
	m.obs.DeviceError("write")
	m.log.Warn("Playback write failed", "error", err, "consecutive", s.errors)

	if stopErr := m.dev.Stop(); stopErr != nil {
		m.log.Debug("Device stop after write failure failed", "error", stopErr)
	}
	if m.opts.MaxDeviceErrors > 0 && s.errors >= m.opts.MaxDeviceErrors {
		m.fault(fmt.Errorf("stream %s: %d consecutive write failures: %w", s.id, s.errors, err))
		s.errors = 0
	}
	sleepCtx(ctx, m.opts.ErrorBackoff)
	return err
}

// teardown is the single exit path for stop, finish and shutdown. At most
// DrainLimit unread bytes are played; anything beyond that is discarded.
func (m *Manager) teardown(ctx context.Context, reason string) error {
	var err error
	err = multierr.Append(err, deviceError("stop", m.dev.Stop()))

	remaining := m.ring.Available()
	switch {
	case remaining == 0:
	case remaining <= m.opts.DrainLimit && ctx.Err() == nil:
		m.log.Debug("Draining streaming ring", "bytes", remaining, "reason", reason)
		tail := m.ring.PopAll()
		if werr := writeAll(ctx, m.dev, tail, m.opts.SampleRate, m.opts.DeviceTimeout); werr != nil {
			m.stats.deviceWriteErrors.Inc()
			m.obs.DeviceError("write")
			err = multierr.Append(err, werr)
		} else {
			m.stats.bytesPlayed.Add(uint64(len(tail)))
			m.obs.Played(len(tail))
		}
		err = multierr.Append(err, deviceError("stop", m.dev.Stop()))
	default:
		m.stats.drainDiscards.Inc()
		m.obs.Dropped(ReasonDrainDiscard, remaining)
		m.log.Warn("Discarding buffered audio on stop", "bytes", remaining, "limit", m.opts.DrainLimit, "reason", reason)
	}

	m.ring.Reset()
	m.obs.RingLevel(0)
	return err
}
