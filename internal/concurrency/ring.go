// File: internal/concurrency/ring.go
// Package concurrency implements lock-free ring buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Ring is a bounded single-producer/single-consumer queue with head and tail
// on separate cache lines. Completion queues are built on it.

package concurrency

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Ring is safe for exactly one producer goroutine and one consumer goroutine.
type Ring[T any] struct {
	data []T
	mask uint64
	_    cpu.CacheLinePad
	head atomic.Uint64
	_    cpu.CacheLinePad
	tail atomic.Uint64
	_    cpu.CacheLinePad
}

// NewRing allocates a ring holding at least capacity items, rounded up to a
// power of two.
func NewRing[T any](capacity int) *Ring[T] {
	size := nextPowerOfTwo(uint32(capacity))
	return &Ring[T]{
		data: make([]T, size),
		mask: uint64(size - 1),
	}
}

// Push appends item; returns false if the ring is full.
func (r *Ring[T]) Push(item T) bool {
	tail := r.tail.Load()
	if tail-r.head.Load() >= uint64(len(r.data)) {
		return false
	}
	r.data[tail&r.mask] = item
	r.tail.Store(tail + 1)
	return true
}

// PopBatch moves up to len(dst) items into dst and returns how many.
func (r *Ring[T]) PopBatch(dst []T) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	n := uint64(len(dst))
	if avail < n {
		n = avail
	}
	var zero T
	for i := uint64(0); i < n; i++ {
		slot := (head + i) & r.mask
		dst[i] = r.data[slot]
		r.data[slot] = zero
	}
	r.head.Store(head + n)
	return int(n)
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.data)
}

func nextPowerOfTwo(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
