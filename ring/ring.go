// Package ring provides the bounded, lock-free, single-producer
// single-consumer channel used to hand commands from the control context
// to the audio context and acknowledgements back.
//
// A Buffer never blocks: Push fails with ErrChannelFull when the buffer
// is at capacity, and Pop reports absence instead of waiting. Neither
// side allocates after construction, so the consumer may run on the
// real-time audio goroutine.
//
// The SPSC contract is strict: exactly one goroutine may call Push and
// exactly one may call Pop. Len and Cap are safe from anywhere.
package ring

import (
	"errors"
	"sync/atomic"
)

// ErrChannelFull is the backpressure signal returned by Push when the
// buffer is at capacity. The caller must retry later; nothing is ever
// dropped silently.
var ErrChannelFull = errors.New("command channel full")

// Buffer is a bounded single-producer/single-consumer ring buffer.
type Buffer[T any] struct {
	slots []T
	// head is the next slot to read, tail the next slot to write. Both
	// increase monotonically; the occupied range is [head, tail).
	head atomic.Uint64
	tail atomic.Uint64
}

// New creates a buffer holding up to capacity elements.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{slots: make([]T, capacity)}
}

// Push appends v. It never blocks; when the buffer is full it returns
// ErrChannelFull and the buffer is unchanged. Producer side only.
func (b *Buffer[T]) Push(v T) error {
	tail := b.tail.Load()
	head := b.head.Load()
	if tail-head == uint64(len(b.slots)) {
		return ErrChannelFull
	}
	b.slots[tail%uint64(len(b.slots))] = v
	b.tail.Store(tail + 1)
	return nil
}

// Pop removes and returns the oldest element. The second return value is
// false when the buffer is empty. Consumer side only.
func (b *Buffer[T]) Pop() (T, bool) {
	var zero T
	head := b.head.Load()
	tail := b.tail.Load()
	if head == tail {
		return zero, false
	}
	i := head % uint64(len(b.slots))
	v := b.slots[i]
	// Drop the slot's reference before publishing the new head so the
	// producer never observes a stale value.
	b.slots[i] = zero
	b.head.Store(head + 1)
	return v, true
}

// Len returns the number of queued elements. The value is a snapshot and
// may be stale by the time it is used.
func (b *Buffer[T]) Len() int {
	return int(b.tail.Load() - b.head.Load())
}

// Cap returns the buffer's capacity.
func (b *Buffer[T]) Cap() int { return len(b.slots) }
