package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/audiolibrelab/voxstream/internal/config"
)

// Control message types sent by the voice server.
const (
	TypeReady  = "ready"
	TypeTTSEnd = "tts_end"
	TypeError  = "error"
)

var ErrClosed = errors.New("transport: connection closed")

// Message is a JSON control message carried in a text frame.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type FrameKind int

const (
	FrameAudio FrameKind = iota
	FrameControl
)

func (k FrameKind) String() string {
	if k == FrameControl {
		return "control"
	}
	return "audio"
}

// Frame is one inbound websocket message. Audio holds PCM for binary frames,
// Control the decoded message for text frames.
type Frame struct {
	Kind    FrameKind
	Audio   []byte
	Control Message
}

// Conn is a client connection to the voice server. Writes are serialized,
// Receive must be called from a single goroutine.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	log          *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Dial connects to cfg.URL, giving up after cfg.DialTimeout.
func Dial(ctx context.Context, cfg config.TransportConfig) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: cfg.DialTimeout,
		ReadBufferSize:   16 * 1024,
		WriteBufferSize:  4 * 1024,
	}
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	ws, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", cfg.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	slog.Info("WebSocket connected", "url", cfg.URL)
	return &Conn{
		ws:           ws,
		writeTimeout: cfg.WriteTimeout,
		log:          slog.Default().With("component", "transport"),
	}, nil
}

func (c *Conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(messageType, data)
}

// SendAudio sends one capture chunk as a binary frame.
func (c *Conn) SendAudio(p []byte) error {
	return c.write(websocket.BinaryMessage, p)
}

// SendControl sends msg as a JSON text frame.
func (c *Conn) SendControl(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

// Receive blocks for the next audio or control frame. Text frames that are not
// valid control messages are logged and skipped.
func (c *Conn) Receive() (Frame, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return Frame{}, ErrClosed
			}
			return Frame{}, err
		}

		switch messageType {
		case websocket.BinaryMessage:
			return Frame{Kind: FrameAudio, Audio: data}, nil
		case websocket.TextMessage:
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
				c.log.Warn("Ignoring malformed control message", "data", string(data), "error", err)
				continue
			}
			return Frame{Kind: FrameControl, Control: msg}, nil
		}
	}
}

// Close sends a close frame and releases the connection. It is safe to call
// more than once and unblocks a pending Receive.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.mu.Unlock()

	return c.ws.Close()
}
