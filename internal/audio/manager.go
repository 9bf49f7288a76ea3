package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// Manager owns the sample device and the buffers between it and the network:
// the recording buffer and send queue on the capture side, and the streaming
// ring on the playback side.
//
// The capture task runs inside Run. Each streaming session gets its own
// playback goroutine, which is the only code that touches the ring or writes
// to the device while the session lasts.
type Manager struct {
	opts Options
	dev  Device
	log  *slog.Logger
	obs  Observer

	rec   *RecordingBuffer
	sendq *SendQueue
	ring  *Ring

	recording     atomic.Bool
	recFullLogged atomic.Bool
	state         atomic.Int32
	closed        atomic.Bool
	stats         Stats
	faults        chan error

	// mu serializes session lifecycle calls and PlayAudio.
	mu sync.Mutex

	sessMu  sync.RWMutex
	session *stream

	ctx    context.Context
	cancel context.CancelFunc
	tasks  conc.WaitGroup
}

// NewManager allocates every buffer up front. It fails with ErrInvalidOptions
// when the options cannot describe a working pipeline.
func NewManager(dev Device, opts Options) (*Manager, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rec, err := NewRecordingBuffer(opts.RecordingBytes)
	if err != nil {
		return nil, err
	}
	sendq, err := NewSendQueue(opts.SendQueueSize, opts.CaptureChunk)
	if err != nil {
		return nil, err
	}
	ring, err := NewRing(opts.RingCapacity)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:   opts,
		dev:    dev,
		log:    logger.With("component", "audio"),
		obs:    obs,
		rec:    rec,
		sendq:  sendq,
		ring:   ring,
		faults: make(chan error, 1),
		ctx:    ctx,
		cancel: cancel,
	}
	return m, nil
}

// Options returns the options the manager was built with.
func (m *Manager) Options() Options {
	return m.opts
}

// StartRecording clears the recording buffer and enables capture.
func (m *Manager) StartRecording() {
	m.rec.Reset()
	m.recFullLogged.Store(false)
	if !m.recording.Swap(true) {
		m.log.Info("Recording started")
	}
}

// StopRecording disables capture. The recorded audio stays available.
func (m *Manager) StopRecording() {
	if m.recording.Swap(false) {
		m.log.Info("Recording stopped", "bytes", m.rec.Len())
	}
}

// IsRecording reports whether the capture task is recording.
func (m *Manager) IsRecording() bool {
	return m.recording.Load()
}

// Recording returns a copy of the audio recorded so far.
func (m *Manager) Recording() []byte {
	return m.rec.Snapshot()
}

// SendQueue returns the queue the capture task fills.
func (m *Manager) SendQueue() *SendQueue {
	return m.sendq
}

// State returns the streaming playback state.
func (m *Manager) State() StreamingState {
	return StreamingState(m.state.Load())
}

func (m *Manager) setState(s StreamingState) {
	if StreamingState(m.state.Swap(int32(s))) != s {
		m.obs.StateChanged(s)
	}
}

// Stats returns a snapshot of the pipeline counters.
func (m *Manager) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

// Buffered returns the number of bytes waiting in the streaming ring.
func (m *Manager) Buffered() int {
	return m.ring.Available()
}

// Faults delivers an error when the device keeps failing. Only the most
// recent unread fault is kept.
func (m *Manager) Faults() <-chan error {
	return m.faults
}

// clearFaults discards a fault left over from a previous stream.
func (m *Manager) clearFaults() {
	select {
	case err := <-m.faults:
		m.log.Debug("Discarding stale device fault", "error", err)
	default:
	}
}

func (m *Manager) fault(err error) {
	m.stats.faults.Inc()
	select {
	case m.faults <- err:
	default:
	}
}

// PlayAudio plays data synchronously and then quiesces the device.
// It is rejected while a streaming session owns the output.
func (m *Manager) PlayAudio(ctx context.Context, data []byte) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}
	if len(data)%BytesPerSample != 0 {
		return ErrOddLength
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateIdle {
		return ErrStreamingActive
	}

	m.log.Debug("Playing audio", "bytes", len(data), "duration", BytesDuration(m.opts.SampleRate, len(data)))
	if err := writeAll(ctx, m.dev, data, m.opts.SampleRate, m.opts.DeviceTimeout); err != nil {
		m.stats.deviceWriteErrors.Inc()
		m.obs.DeviceError("write")
		return multierr.Append(err, deviceError("stop", m.dev.Stop()))
	}
	m.stats.bytesPlayed.Add(uint64(len(data)))
	m.obs.Played(len(data))

	if err := m.dev.Stop(); err != nil {
		return deviceError("stop", err)
	}
	return nil
}

// StartStreaming opens a streaming session. An active session is stopped first.
func (m *Manager) StartStreaming(ctx context.Context) error {
	if m.closed.Load() {
		return ErrManagerClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.State() != StateIdle {
		m.log.Info("Restarting streaming playback")
		if err := m.stopLocked(ctx, "restart"); err != nil {
			m.log.Warn("Previous stream did not stop cleanly", "error", err)
		}
	}

	m.ring.Reset()
	m.clearFaults()
	s := newStream(m.opts)
	m.sessMu.Lock()
	m.session = s
	m.sessMu.Unlock()
	m.setState(StateActive)

	m.tasks.Go(func() { m.playback(m.ctx, s) })
	m.log.Info("Streaming playback started", "stream", s.id)
	return nil
}

// StopStreaming ends the session, draining at most DrainLimit buffered bytes.
// Calling it when no session is active does nothing.
func (m *Manager) StopStreaming(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx, "stop")
}

// FinishStreaming ends the session once the server has sent its last audio.
// It shares the drain bound with StopStreaming and returns after the
// playback goroutine has exited.
func (m *Manager) FinishStreaming(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx, "finish")
}

func (m *Manager) stopLocked(ctx context.Context, reason string) error {
	m.sessMu.RLock()
	s := m.session
	m.sessMu.RUnlock()
	if s == nil {
		return nil
	}

	m.setState(StateDraining)
	select {
	case s.stop <- stopRequest{ctx: ctx, reason: reason}:
	case <-s.done:
	}
	<-s.done

	m.sessMu.Lock()
	m.session = nil
	m.sessMu.Unlock()
	m.setState(StateIdle)

	m.log.Info("Streaming playback stopped", "stream", s.id, "reason", reason)
	return s.err
}

// Close stops any session, waits for playback goroutines and rejects further calls.
// Run returns once its context ends; Close does not wait for it.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.StopRecording()

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.DeviceTimeout+BytesDuration(m.opts.SampleRate, m.opts.DrainLimit))
	defer cancel()
	err := m.StopStreaming(ctx)

	m.cancel()
	m.tasks.Wait()
	m.sendq.Drain()
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type stopRequest struct {
	ctx    context.Context
	reason string
}

type feedRequest struct {
	data  []byte
	reply chan feedReply
}

type feedReply struct {
	res FeedResult
	err error
}

// stream is the state private to one playback goroutine.
type stream struct {
	id      string
	feeds   chan feedRequest
	stop    chan stopRequest
	done    chan struct{}
	playBuf []byte
	errors  int
	err     error
}

func newStream(opts Options) *stream {
	return &stream{
		id:      uuid.NewString(),
		feeds:   make(chan feedRequest, opts.FeedQueueSize),
		stop:    make(chan stopRequest, 1),
		done:    make(chan struct{}),
		playBuf: make([]byte, opts.PlayChunk),
	}
}
