// Package window implements the fixed-capacity sliding window over live samples.
package window

import (
	"fmt"

	"github.com/okian/fallsense/internal/domain/model"
)

// Buffer holds the most recent samples, oldest first.
//
// The backing array is twice the capacity: samples are appended at the tail
// and the live region [head, tail) is compacted to the front only when the
// tail reaches the end, so Push is O(1) amortized and Snapshot never copies.
// Buffer is not safe for concurrent use; it is owned by the ingestion loop.
type Buffer struct {
	data     []model.Sample
	head     int
	tail     int
	capacity int
}

// New creates a buffer holding at most capacity samples.
func New(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrCapacity, capacity)
	}
	return &Buffer{
		data:     make([]model.Sample, 2*capacity),
		capacity: capacity,
	}, nil
}

// Push appends s, evicting the oldest sample when the buffer is full.
func (b *Buffer) Push(s model.Sample) {
	if b.Len() == b.capacity {
		b.head++
	}
	if b.tail == len(b.data) {
		n := copy(b.data, b.data[b.head:b.tail])
		b.head, b.tail = 0, n
	}
	b.data[b.tail] = s
	b.tail++
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int { return b.tail - b.head }

// Cap returns the window size.
func (b *Buffer) Cap() int { return b.capacity }

// Full reports whether the buffer holds exactly Cap samples.
func (b *Buffer) Full() bool { return b.Len() == b.capacity }

// Snapshot returns a read-only view of the buffered samples, oldest first.
// The view is valid until the next mutation.
func (b *Buffer) Snapshot() model.Window {
	return model.Window(b.data[b.head:b.tail:b.tail])
}

// Evict drops the n oldest samples. n >= Len clears the buffer.
func (b *Buffer) Evict(n int) {
	if n <= 0 {
		return
	}
	if n >= b.Len() {
		b.Reset()
		return
	}
	b.head += n
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.head, b.tail = 0, 0
}
