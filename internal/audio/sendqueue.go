package audio

import (
	"context"
	"fmt"
	"sync"
)

// SendItem is an owned copy of one captured chunk on its way to the network.
// The consumer must call Release once the data has been sent.
type SendItem struct {
	Data []byte
	pool *sync.Pool
}

// Len returns the number of valid bytes.
func (it *SendItem) Len() int {
	return len(it.Data)
}

// Release returns the backing buffer to its pool. Calling it twice is a no-op.
func (it *SendItem) Release() {
	if it == nil || it.pool == nil {
		return
	}
	p := it.pool
	it.pool = nil
	buf := it.Data[:cap(it.Data)]
	it.Data = nil
	p.Put(&buf)
}

// SendQueue is a bounded FIFO of captured chunks. Enqueue never blocks.
type SendQueue struct {
	items chan *SendItem
	pool  sync.Pool
}

// NewSendQueue creates a queue holding up to size items of chunkSize bytes.
func NewSendQueue(size, chunkSize int) (*SendQueue, error) {
	if size <= 0 || chunkSize <= 0 {
		return nil, fmt.Errorf("%w: send queue %d x %d", ErrInvalidOptions, size, chunkSize)
	}
	q := &SendQueue{items: make(chan *SendItem, size)}
	q.pool.New = func() any {
		b := make([]byte, chunkSize)
		return &b
	}
	return q, nil
}

// copyOf returns a pooled item holding a copy of p.
func (q *SendQueue) copyOf(p []byte) *SendItem {
	bp := q.pool.Get().(*[]byte)
	buf := *bp
	if cap(buf) < len(p) {
		buf = make([]byte, len(p))
	}
	buf = buf[:len(p)]
	copy(buf, p)
	return &SendItem{Data: buf, pool: &q.pool}
}

// TryEnqueue hands a copy of p to the queue. When the queue is full the copy
// is released and ErrSendQueueFull is returned.
func (q *SendQueue) TryEnqueue(p []byte) error {
	it := q.copyOf(p)
	select {
	case q.items <- it:
		return nil
	default:
		it.Release()
		return ErrSendQueueFull
	}
}

// Dequeue waits for the next item or for ctx to end.
func (q *SendQueue) Dequeue(ctx context.Context) (*SendItem, error) {
	select {
	case it := <-q.items:
		return it, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryDequeue returns the next item if one is queued.
func (q *SendQueue) TryDequeue() (*SendItem, bool) {
	select {
	case it := <-q.items:
		return it, true
	default:
		return nil, false
	}
}

// Len returns the number of queued items.
func (q *SendQueue) Len() int {
	return len(q.items)
}

// Cap returns the queue capacity.
func (q *SendQueue) Cap() int {
	return cap(q.items)
}

// Drain releases every queued item and returns how many were discarded.
func (q *SendQueue) Drain() int {
	n := 0
	for {
		it, ok := q.TryDequeue()
		if !ok {
			return n
		}
		it.Release()
		n++
	}
}
