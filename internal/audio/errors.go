package audio

import (
	"errors"
	"fmt"
)

// Construction errors.
var (
	// ErrInvalidOptions indicates the manager or one of its buffers could not be sized.
	ErrInvalidOptions = errors.New("invalid audio options")

	// ErrManagerClosed indicates the manager has been closed.
	ErrManagerClosed = errors.New("audio manager closed")
)

// Device errors.
var (
	// ErrDeviceIO indicates a read or write against the sample device failed.
	ErrDeviceIO = errors.New("device I/O failed")

	// ErrDeviceTimeout indicates a device call did not complete within its bound.
	ErrDeviceTimeout = errors.New("device I/O timed out")
)

// Backpressure and capacity errors.
var (
	// ErrSendQueueFull indicates a captured chunk was dropped because the send queue is full.
	ErrSendQueueFull = errors.New("send queue full")

	// ErrRingOverflow indicates incoming audio did not fit in the free ring space.
	ErrRingOverflow = errors.New("streaming ring overflow")

	// ErrRecordingFull indicates the recording buffer reached its configured duration.
	ErrRecordingFull = errors.New("recording buffer full")
)

// Payload validation errors. All of them match ErrInvalidPayload with errors.Is.
var (
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrControlFragment is a payload below the minimum audio size.
	ErrControlFragment = fmt.Errorf("%w: below minimum size", ErrInvalidPayload)

	// ErrOddLength is a payload that cannot hold whole 16-bit samples.
	ErrOddLength = fmt.Errorf("%w: odd length", ErrInvalidPayload)

	// ErrSilentPayload is a payload without any audible variation.
	ErrSilentPayload = fmt.Errorf("%w: no signal", ErrInvalidPayload)
)

// Streaming state errors.
var (
	// ErrNotStreaming indicates streaming playback is not active.
	ErrNotStreaming = errors.New("streaming playback not active")

	// ErrStreamingActive indicates an operation needs the output device while a stream owns it.
	ErrStreamingActive = errors.New("streaming playback active")
)

// DeviceError records which device operation failed.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() []error {
	return []error{ErrDeviceIO, e.Err}
}

func deviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Err: err}
}
