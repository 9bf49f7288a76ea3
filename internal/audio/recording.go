package audio

import (
	"fmt"
	"sync"
)

// RecordingBuffer holds the audio captured since the last StartRecording.
// Appends that would exceed capacity are rejected whole.
type RecordingBuffer struct {
	mu     sync.Mutex
	data   []byte
	length int
}

// NewRecordingBuffer allocates capacity bytes of storage up front.
func NewRecordingBuffer(capacity int) (*RecordingBuffer, error) {
	if capacity <= 0 || capacity%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: recording capacity %d", ErrInvalidOptions, capacity)
	}
	return &RecordingBuffer{data: make([]byte, capacity)}, nil
}

// Append copies p after the current content.
func (b *RecordingBuffer) Append(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.length+len(p) > len(b.data) {
		return ErrRecordingFull
	}
	copy(b.data[b.length:], p)
	b.length += len(p)
	return nil
}

// Reset discards the recorded content.
func (b *RecordingBuffer) Reset() {
	b.mu.Lock()
	b.length = 0
	b.mu.Unlock()
}

func (b *RecordingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

func (b *RecordingBuffer) Capacity() int {
	return len(b.data)
}

// Snapshot returns a copy of the recorded bytes.
func (b *RecordingBuffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, b.length)
	copy(out, b.data[:b.length])
	return out
}
