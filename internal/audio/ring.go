package audio

import (
	"fmt"

	"go.uber.org/atomic"
)

// Ring is a fixed-capacity byte ring with monotonic write and read cursors.
// It supports one writer and one reader. The cursors never wrap; positions in
// storage are cursor modulo capacity.
type Ring struct {
	buf   []byte
	size  uint64
	write atomic.Uint64
	read  atomic.Uint64
}

// NewRing allocates a ring of capacity bytes. Capacity must be positive and even.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 || capacity%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: ring capacity %d", ErrInvalidOptions, capacity)
	}
	return &Ring{
		buf:  make([]byte, capacity),
		size: uint64(capacity),
	}, nil
}

// Capacity returns the ring size in bytes.
func (r *Ring) Capacity() int {
	return int(r.size)
}

// Available returns the number of unread bytes.
func (r *Ring) Available() int {
	return int(r.write.Load() - r.read.Load())
}

// Free returns the number of bytes that can be pushed.
func (r *Ring) Free() int {
	return r.Capacity() - r.Available()
}

// ReadOffset returns the read cursor.
func (r *Ring) ReadOffset() uint64 {
	return r.read.Load()
}

// TryPush appends p in full or not at all.
func (r *Ring) TryPush(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w := r.write.Load()
	rd := r.read.Load()
	if uint64(len(p)) > r.size-(w-rd) {
		return 0, ErrRingOverflow
	}

	pos := w % r.size
	n := copy(r.buf[pos:], p)
	if n < len(p) {
		copy(r.buf, p[n:])
	}
	r.write.Store(w + uint64(len(p)))
	return len(p), nil
}

// PopExact fills dst from the ring if at least len(dst) bytes are available.
func (r *Ring) PopExact(dst []byte) bool {
	rd := r.read.Load()
	w := r.write.Load()
	if uint64(len(dst)) > w-rd {
		return false
	}

	pos := rd % r.size
	n := copy(dst, r.buf[pos:])
	if n < len(dst) {
		copy(dst[n:], r.buf)
	}
	r.read.Store(rd + uint64(len(dst)))
	return true
}

// PopAll drains every unread byte into a new slice.
func (r *Ring) PopAll() []byte {
	n := r.Available()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	r.PopExact(out)
	return out
}

// Skip advances the read cursor by up to n bytes.
func (r *Ring) Skip(n int) {
	if avail := r.Available(); n > avail {
		n = avail
	}
	if n <= 0 {
		return
	}
	r.read.Add(uint64(n))
}

// Reset zeroes storage and rewinds both cursors.
func (r *Ring) Reset() {
	clear(r.buf)
	r.write.Store(0)
	r.read.Store(0)
}
