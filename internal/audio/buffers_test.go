package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAudible(t *testing.T) {
	tests := []struct {
		name      string
		samples   []int16
		threshold int
		want      bool
	}{
		{"empty", nil, 30, false},
		{"single sample", []int16{1000}, 30, false},
		{"flat", []int16{5, 5, 5, 5}, 30, false},
		{"delta equals threshold", []int16{0, 30, 60, 90}, 30, false},
		{"delta above threshold", []int16{0, 31}, 30, true},
		{"negative swing", []int16{100, 100, -100}, 30, true},
		{"extremes", []int16{32767, -32768}, 30, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Audible(SamplesToBytes(tt.samples), tt.threshold))
		})
	}
}

func TestSampleConversion(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768}
	p := SamplesToBytes(samples)
	assert.Equal(t, []byte{0, 0, 1, 0, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, p)
	assert.Equal(t, samples, BytesToSamples(append(p, 0x42)))
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 32000, ByteRate(16000))
	assert.Equal(t, 800, DurationBytes(16000, 25*time.Millisecond))
	assert.Equal(t, 882, DurationBytes(44100, 10*time.Millisecond))
	assert.Equal(t, 25*time.Millisecond, BytesDuration(16000, 800))
	assert.Equal(t, time.Duration(0), BytesDuration(0, 800))
}

func TestRecordingBuffer(t *testing.T) {
	_, err := NewRecordingBuffer(0)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	b, err := NewRecordingBuffer(8)
	require.NoError(t, err)

	require.NoError(t, b.Append([]byte{1, 2, 3, 4}))
	assert.ErrorIs(t, b.Append([]byte{5, 6, 7, 8, 9, 10}), ErrRecordingFull)
	assert.Equal(t, 4, b.Len())

	snap := b.Snapshot()
	snap[0] = 99
	assert.Equal(t, []byte{1, 2, 3, 4}, b.Snapshot())

	require.NoError(t, b.Append([]byte{5, 6, 7, 8}))
	assert.Equal(t, b.Capacity(), b.Len())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Empty(t, b.Snapshot())
}

func TestSendQueue(t *testing.T) {
	_, err := NewSendQueue(0, 640)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	q, err := NewSendQueue(2, 4)
	require.NoError(t, err)

	src := []byte{1, 2, 3, 4}
	require.NoError(t, q.TryEnqueue(src))
	src[0] = 9 // the queue holds its own copy
	require.NoError(t, q.TryEnqueue([]byte{5, 6}))
	assert.ErrorIs(t, q.TryEnqueue([]byte{7, 8}), ErrSendQueueFull)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Cap())

	it, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, it.Data)
	assert.Equal(t, 4, it.Len())
	it.Release()
	it.Release()
	assert.Nil(t, it.Data)

	assert.Equal(t, 1, q.Drain())
	_, ok := q.TryDequeue()
	assert.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSendQueue_LargerThanChunk(t *testing.T) {
	q, err := NewSendQueue(1, 2)
	require.NoError(t, err)

	require.NoError(t, q.TryEnqueue([]byte{1, 2, 3, 4, 5, 6}))
	it, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, it.Data)
	it.Release()
}

func TestStreamingStateText(t *testing.T) {
	text, err := StateDraining.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "DRAINING", string(text))
	assert.Equal(t, "IDLE", StateIdle.String())
	assert.Equal(t, "UNKNOWN", StreamingState(9).String())

	var st StreamingState
	require.NoError(t, st.UnmarshalText([]byte("ACTIVE")))
	assert.Equal(t, StateActive, st)
	assert.Error(t, st.UnmarshalText([]byte("PAUSED")))
}
