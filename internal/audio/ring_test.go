package audio

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRing_RejectsBadCapacity(t *testing.T) {
	for _, c := range []int{0, -2, 7} {
		_, err := NewRing(c)
		assert.ErrorIs(t, err, ErrInvalidOptions, "capacity %d", c)
	}
}

func TestRing_PushPopWraparound(t *testing.T) {
	r, err := NewRing(8)
	require.NoError(t, err)

	n, err := r.TryPush([]byte{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	dst := make([]byte, 4)
	require.True(t, r.PopExact(dst))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)

	// 2 unread + 6 new wraps around the end of storage
	_, err = r.TryPush([]byte{7, 8, 9, 10, 11, 12})
	require.NoError(t, err)
	assert.Equal(t, 8, r.Available())
	assert.Equal(t, 0, r.Free())

	assert.Equal(t, []byte{5, 6, 7, 8, 9, 10, 11, 12}, r.PopAll())
	assert.Equal(t, 0, r.Available())
	assert.Nil(t, r.PopAll())
}

func TestRing_TryPushIsAllOrNothing(t *testing.T) {
	r, err := NewRing(8)
	require.NoError(t, err)

	_, err = r.TryPush(make([]byte, 6))
	require.NoError(t, err)

	n, err := r.TryPush(make([]byte, 4))
	assert.ErrorIs(t, err, ErrRingOverflow)
	assert.Equal(t, 0, n)
	assert.Equal(t, 6, r.Available())
}

func TestRing_PopExactShort(t *testing.T) {
	r, err := NewRing(8)
	require.NoError(t, err)

	_, err = r.TryPush([]byte{1, 2})
	require.NoError(t, err)
	assert.False(t, r.PopExact(make([]byte, 4)))
	assert.Equal(t, 2, r.Available())
}

func TestRing_SkipAndReset(t *testing.T) {
	r, err := NewRing(8)
	require.NoError(t, err)

	_, err = r.TryPush([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	r.Skip(1)
	assert.Equal(t, uint64(1), r.ReadOffset())
	r.Skip(100)
	assert.Equal(t, 0, r.Available())

	_, err = r.TryPush([]byte{9, 9})
	require.NoError(t, err)
	r.Reset()
	assert.Equal(t, 0, r.Available())
	assert.Equal(t, uint64(0), r.ReadOffset())
	assert.Equal(t, make([]byte, 8), r.buf)
}

func TestRing_AvailableNeverExceedsCapacity(t *testing.T) {
	r, err := NewRing(64)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	var pushed, popped []byte
	for i := 0; i < 5000; i++ {
		if rng.Intn(2) == 0 {
			p := make([]byte, rng.Intn(40))
			rng.Read(p)
			if _, err := r.TryPush(p); err == nil {
				pushed = append(pushed, p...)
			}
		} else {
			dst := make([]byte, rng.Intn(40))
			if r.PopExact(dst) {
				popped = append(popped, dst...)
			}
		}
		require.GreaterOrEqual(t, r.Available(), 0)
		require.LessOrEqual(t, r.Available(), r.Capacity())
	}
	popped = append(popped, r.PopAll()...)
	assert.Equal(t, pushed, popped)
}

func TestRing_ConcurrentProducerConsumer(t *testing.T) {
	r, err := NewRing(256)
	require.NoError(t, err)

	const total = 1 << 16
	src := make([]byte, total)
	for i := range src {
		src[i] = byte(i * 7)
	}

	done := make(chan []byte)
	go func() {
		var got []byte
		buf := make([]byte, 32)
		for len(got) < total {
			if r.PopExact(buf) {
				got = append(got, buf...)
			}
		}
		done <- got
	}()

	for off := 0; off < total; {
		if _, err := r.TryPush(src[off : off+32]); err == nil {
			off += 32
		}
	}
	assert.Equal(t, src, <-done)
}
