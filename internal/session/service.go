package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/voxstream/internal/audio"
	"github.com/audiolibrelab/voxstream/internal/config"
	"github.com/audiolibrelab/voxstream/internal/play"
	"github.com/audiolibrelab/voxstream/internal/transport"
)

var (
	ErrSessionActive = errors.New("session already active")
	ErrNoSession     = errors.New("no active session")

	errLinkClosed = errors.New("server closed the connection")
)

// Service represents the conversation control surface used by the CLI and
// the HTTP server.
type Service interface {
	// Session operations
	Start(ctx context.Context) (Info, error)
	Stop(ctx context.Context) error
	Finish(ctx context.Context) error

	// Serve keeps a session running until ctx ends, reconnecting after
	// connection loss.
	Serve(ctx context.Context) error

	// Information operations
	Status() Info
	Recording() []byte
	GetConfig() *config.Config
	GetLastError() string

	Close() error
}

// Status represents the session state
type Status string

const (
	StatusIdle   Status = "IDLE"
	StatusActive Status = "ACTIVE"
	StatusError  Status = "ERROR"
)

// Info describes the current session and the audio pipeline behind it.
type Info struct {
	Status    Status               `json:"status"`
	SessionID string               `json:"session_id,omitempty"`
	StartTime *time.Time           `json:"start_time,omitempty"`
	Streaming audio.StreamingState `json:"streaming"`
	Recording bool                 `json:"recording"`
	Buffered  int                  `json:"buffered_bytes"`
	SendQueue int                  `json:"send_queue"`
	LastError string               `json:"last_error,omitempty"`
	Stats     audio.StatsSnapshot  `json:"stats"`
}

// Link is the network side of a session.
type Link interface {
	SendAudio(p []byte) error
	Receive() (transport.Frame, error)
	Close() error
}

// Dialer opens a Link to the voice server.
type Dialer func(ctx context.Context) (Link, error)

// WebsocketDialer dials the server configured in cfg.
func WebsocketDialer(cfg config.TransportConfig) Dialer {
	return func(ctx context.Context) (Link, error) {
		conn, err := transport.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Metrics receives session events. *metrics.Metrics satisfies it.
type Metrics interface {
	RecordSessionStarted()
	RecordSessionEnded()
	RecordFrameSent()
	RecordFrameReceived(kind string)
	RecordControl(msgType string)
	RecordReconnect()
}

type nopMetrics struct{}

func (nopMetrics) RecordSessionStarted()      {}
func (nopMetrics) RecordSessionEnded()        {}
func (nopMetrics) RecordFrameSent()           {}
func (nopMetrics) RecordFrameReceived(string) {}
func (nopMetrics) RecordControl(string)       {}
func (nopMetrics) RecordReconnect()           {}

type session struct {
	id     string
	start  time.Time
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// VoiceService is the main service implementation
type VoiceService struct {
	cfg     *config.Config
	mgr     *audio.Manager
	dial    Dialer
	player  *play.Player
	metrics Metrics
	log     *slog.Logger

	// mu serializes Start against itself.
	mu sync.Mutex

	curMu   sync.RWMutex
	current *session
	tasks   conc.WaitGroup

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a service around an already constructed manager. The caller
// runs the manager's capture task. m may be nil.
func New(cfg *config.Config, mgr *audio.Manager, dial Dialer, m Metrics) *VoiceService {
	if m == nil {
		m = nopMetrics{}
	}
	return &VoiceService{
		cfg:     cfg,
		mgr:     mgr,
		dial:    dial,
		player:  play.New(cfg),
		metrics: m,
		log:     slog.Default().With("component", "session"),
	}
}

// Start connects to the server, plays the greeting and starts capture and
// streaming playback. The session outlives ctx; use Stop to end it.
func (s *VoiceService) Start(ctx context.Context) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active() != nil {
		return s.Status(), ErrSessionActive
	}
	s.clearLastError()

	link, err := s.dial(ctx)
	if err != nil {
		s.setLastError(fmt.Sprintf("Failed to connect: %v", err))
		return s.Status(), fmt.Errorf("connect: %w", err)
	}

	if err := s.player.Greeting(ctx, s.mgr); err != nil {
		s.log.Warn("Greeting failed", "error", err)
	}

	s.mgr.StartRecording()
	if err := s.mgr.StartStreaming(ctx); err != nil {
		s.mgr.StopRecording()
		link.Close()
		s.setLastError(fmt.Sprintf("Failed to start streaming: %v", err))
		return s.Status(), err
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:     uuid.NewString(),
		start:  time.Now(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.curMu.Lock()
	s.current = sess
	s.curMu.Unlock()
	s.metrics.RecordSessionStarted()
	s.log.Info("Session started", "session", sess.id)

	s.tasks.Go(func() {
		defer close(sess.done)
		sess.err = s.run(sessCtx, sess, link)
		if sess.err != nil {
			s.log.Error("Session ended with error", "session", sess.id, "error", sess.err)
			s.setLastError(sess.err.Error())
		} else {
			s.log.Info("Session ended", "session", sess.id)
		}
		s.metrics.RecordSessionEnded()
	})

	return s.Status(), nil
}

// run pumps the send queue to the link and dispatches inbound frames until
// ctx ends, the link fails or the device faults.
func (s *VoiceService) run(ctx context.Context, sess *session, link Link) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q := s.mgr.SendQueue()
		for {
			item, err := q.Dequeue(gctx)
			if err != nil {
				return nil
			}
			err = link.SendAudio(item.Data)
			item.Release()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send: %w", err)
			}
			s.metrics.RecordFrameSent()
		}
	})

	g.Go(func() error {
		for {
			frame, err := link.Receive()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				if errors.Is(err, transport.ErrClosed) {
					return errLinkClosed
				}
				return fmt.Errorf("receive: %w", err)
			}
			s.metrics.RecordFrameReceived(frame.Kind.String())
			if err := s.dispatch(gctx, sess, frame); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		select {
		case err := <-s.mgr.Faults():
			return fmt.Errorf("audio device: %w", err)
		case <-gctx.Done():
			return nil
		}
	})

	// closing the link unblocks Receive
	g.Go(func() error {
		<-gctx.Done()
		return link.Close()
	})

	err := g.Wait()
	if errors.Is(err, errLinkClosed) {
		s.log.Info("Server closed the connection", "session", sess.id)
		err = nil
	}

	s.mgr.StopRecording()
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return multierr.Combine(err, s.mgr.StopStreaming(stopCtx))
}

func (s *VoiceService) dispatch(ctx context.Context, sess *session, frame transport.Frame) error {
	switch frame.Kind {
	case transport.FrameAudio:
		// a new reply after tts_end restarts streaming playback
		if s.mgr.State() == audio.StateIdle {
			if err := s.mgr.StartStreaming(ctx); err != nil {
				return fmt.Errorf("restart streaming: %w", err)
			}
		}
		if _, err := s.mgr.Feed(ctx, frame.Audio); err != nil {
			if errors.Is(err, audio.ErrManagerClosed) {
				return err
			}
			s.log.Debug("Feed rejected", "session", sess.id, "bytes", len(frame.Audio), "error", err)
		}

	case transport.FrameControl:
		s.metrics.RecordControl(frame.Control.Type)
		switch frame.Control.Type {
		case transport.TypeReady:
			s.log.Info("Server ready", "session", sess.id, "message", frame.Control.Message)
		case transport.TypeTTSEnd:
			s.log.Debug("Reply finished", "session", sess.id)
			if err := s.mgr.FinishStreaming(ctx); err != nil {
				s.log.Warn("Finishing playback failed", "session", sess.id, "error", err)
			}
		case transport.TypeError:
			s.log.Warn("Server error", "session", sess.id, "message", frame.Control.Message)
			s.setLastError(frame.Control.Message)
		default:
			s.log.Debug("Unknown control message", "session", sess.id, "type", frame.Control.Type)
		}
	}
	return nil
}

// Stop ends the current session and waits for its teardown.
func (s *VoiceService) Stop(ctx context.Context) error {
	sess := s.active()
	if sess == nil {
		return ErrNoSession
	}
	sess.cancel()

	select {
	case <-sess.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish drains the reply currently playing without ending the session.
func (s *VoiceService) Finish(ctx context.Context) error {
	if s.active() == nil {
		return ErrNoSession
	}
	return s.mgr.FinishStreaming(ctx)
}

// Serve runs sessions back to back until ctx ends. A lost connection is
// retried after the configured reconnect delay.
func (s *VoiceService) Serve(ctx context.Context) error {
	delay := s.cfg.Transport.ReconnectDelay
	for {
		if _, err := s.Start(ctx); err != nil && !errors.Is(err, ErrSessionActive) {
			s.log.Warn("Session start failed", "error", err)
		}

		if sess := s.active(); sess != nil {
			select {
			case <-sess.done:
			case <-ctx.Done():
			}
		}

		if ctx.Err() != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Stop(stopCtx); err != nil && !errors.Is(err, ErrNoSession) {
				return err
			}
			return nil
		}

		s.metrics.RecordReconnect()
		s.log.Info("Reconnecting", "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// Status reports the session state together with the pipeline counters.
func (s *VoiceService) Status() Info {
	info := Info{
		Status:    StatusIdle,
		Streaming: s.mgr.State(),
		Recording: s.mgr.IsRecording(),
		Buffered:  s.mgr.Buffered(),
		SendQueue: s.mgr.SendQueue().Len(),
		LastError: s.GetLastError(),
		Stats:     s.mgr.Stats(),
	}

	if sess := s.active(); sess != nil {
		start := sess.start
		info.Status = StatusActive
		info.SessionID = sess.id
		info.StartTime = &start
	} else if info.LastError != "" {
		info.Status = StatusError
	}
	return info
}

// active returns the running session, if any.
func (s *VoiceService) active() *session {
	s.curMu.RLock()
	sess := s.current
	s.curMu.RUnlock()
	if sess == nil {
		return nil
	}
	select {
	case <-sess.done:
		return nil
	default:
		return sess
	}
}

// Recording returns the audio captured during the current or last session.
func (s *VoiceService) Recording() []byte {
	return s.mgr.Recording()
}

// GetConfig returns the current configuration
func (s *VoiceService) GetConfig() *config.Config {
	return s.cfg
}

// Close stops any running session and waits for its goroutines.
func (s *VoiceService) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.Stop(ctx)
	if errors.Is(err, ErrNoSession) {
		err = nil
	}
	s.tasks.Wait()
	return err
}

// GetLastError returns the last error message
func (s *VoiceService) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *VoiceService) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err
}

func (s *VoiceService) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
