package audio

import (
	"context"

	"go.uber.org/multierr"
)

// FeedResult describes what Feed did with a payload.
type FeedResult struct {
	// Played is the number of bytes written to the device.
	Played int `json:"played"`
	// Writes is the number of device writes issued.
	Writes int `json:"writes"`
	// Buffered is the ring fill level after the call.
	Buffered int `json:"buffered"`
}

// Feed validates a payload received from the server and hands it to the
// playback goroutine. It returns once the payload has been buffered or
// played, or ctx ends.
func (m *Manager) Feed(ctx context.Context, data []byte) (FeedResult, error) {
	if m.closed.Load() {
		return FeedResult{}, ErrManagerClosed
	}

	m.sessMu.RLock()
	s := m.session
	m.sessMu.RUnlock()
	if s == nil || m.State() != StateActive {
		m.reject(ReasonNotStreaming, len(data))
		m.log.Warn("Audio received while streaming playback is not active", "bytes", len(data))
		return FeedResult{}, ErrNotStreaming
	}

	if err := m.validate(data); err != nil {
		return FeedResult{}, err
	}

	req := feedRequest{
		data:  append([]byte(nil), data...),
		reply: make(chan feedReply, 1),
	}
	select {
	case s.feeds <- req:
	case <-s.done:
		return FeedResult{}, ErrNotStreaming
	case <-ctx.Done():
		return FeedResult{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-s.done:
		select {
		case r := <-req.reply:
			return r.res, r.err
		default:
			return FeedResult{}, ErrNotStreaming
		}
	case <-ctx.Done():
		return FeedResult{}, ctx.Err()
	}
}

func (m *Manager) validate(data []byte) error {
	switch {
	case len(data) < m.opts.MinPayload:
		m.reject(ReasonControl, len(data))
		m.log.Debug("Ignoring control fragment", "bytes", len(data))
		return ErrControlFragment
	case len(data)%BytesPerSample != 0:
		m.reject(ReasonOddLength, len(data))
		m.log.Debug("Ignoring odd-length payload", "bytes", len(data))
		return ErrOddLength
	case len(data) >= minVariationBytes && !Audible(data, m.opts.VariationThreshold):
		m.reject(ReasonSilent, len(data))
		return ErrSilentPayload
	}
	return nil
}

func (m *Manager) reject(reason string, n int) {
	m.stats.feedRejected.Inc()
	m.obs.Dropped(reason, n)
}

// dispatch runs on the playback goroutine. Requests still queued when a stop
// arrives are rejected here, so nothing is buffered or played after Active.
func (m *Manager) dispatch(ctx context.Context, s *stream, data []byte) (FeedResult, error) {
	var res FeedResult
	if m.State() != StateActive {
		m.reject(ReasonNotStreaming, len(data))
		m.log.Debug("Dropping queued audio, streaming is ending", "bytes", len(data), "stream", s.id)
		return res, ErrNotStreaming
	}
	chunk := m.opts.FeedChunk
	buffered := m.ring.Available()

	switch {
	case buffered+len(data) < chunk:
		if _, err := m.ring.TryPush(data); err != nil {
			m.stats.ringOverflows.Inc()
			m.obs.Dropped(ReasonOverflow, len(data))
			m.log.Warn("Streaming ring overflow, dropping audio", "bytes", len(data), "buffered", buffered)
			res.Buffered = buffered
			return res, err
		}

	case len(data) < chunk:
		combined := append(m.ring.PopAll(), data...)
		m.ring.Reset()
		res.Writes = 1
		if err := m.play(ctx, s, combined); err != nil {
			return res, err
		}
		res.Played = len(combined)

	default:
		pending := data
		if buffered > 0 {
			pending = append(m.ring.PopAll(), data...)
		}
		var errs error
		off := 0
		for len(pending)-off >= chunk && m.State() == StateActive {
			res.Writes++
			if err := m.play(ctx, s, pending[off:off+chunk]); err != nil {
				errs = multierr.Append(errs, err)
			} else {
				res.Played += chunk
			}
			off += chunk
		}

		rest := pending[off:]
		if m.State() != StateActive {
			m.log.Debug("Stream stopped while feeding", "unplayed", len(rest))
		} else if _, err := m.ring.TryPush(rest); err != nil {
			m.stats.ringOverflows.Inc()
			m.obs.Dropped(ReasonOverflow, len(rest))
			errs = multierr.Append(errs, err)
		}
		if errs != nil {
			res.Buffered = m.ring.Available()
			return res, errs
		}
	}

	m.stats.feedAccepted.Inc()
	res.Buffered = m.ring.Available()
	m.obs.RingLevel(res.Buffered)
	return res, nil
}
