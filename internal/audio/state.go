package audio

import "fmt"

// StreamingState is the lifecycle of a streaming playback session.
type StreamingState int32

const (
	StateIdle StreamingState = iota
	StateActive
	StateDraining
)

func (s StreamingState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateDraining:
		return "DRAINING"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets the state appear by name in JSON status output.
func (s StreamingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StreamingState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IDLE":
		*s = StateIdle
	case "ACTIVE":
		*s = StateActive
	case "DRAINING":
		*s = StateDraining
	default:
		return fmt.Errorf("unknown streaming state %q", text)
	}
	return nil
}

// Drop and rejection reasons reported to observers.
const (
	ReasonSendQueueFull  = "send_queue_full"
	ReasonRecordingFull  = "recording_full"
	ReasonControl        = "control_fragment"
	ReasonOddLength      = "odd_length"
	ReasonSilent         = "silent"
	ReasonOverflow       = "ring_overflow"
	ReasonNotStreaming   = "not_streaming"
	ReasonInaudibleChunk = "inaudible_chunk"
	ReasonDrainDiscard   = "drain_discard"
)

// Observer receives pipeline events. Implementations must not block.
type Observer interface {
	ChunkCaptured(bytes int)
	Dropped(reason string, bytes int)
	Played(bytes int)
	DeviceError(op string)
	StateChanged(state StreamingState)
	RingLevel(bytes int)
}

type nopObserver struct{}

func (nopObserver) ChunkCaptured(int)           {}
func (nopObserver) Dropped(string, int)         {}
func (nopObserver) Played(int)                  {}
func (nopObserver) DeviceError(string)          {}
func (nopObserver) StateChanged(StreamingState) {}
func (nopObserver) RingLevel(int)               {}

// NopObserver discards every event.
var NopObserver Observer = nopObserver{}
