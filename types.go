// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

// Queue is the combined producer-consumer interface for a blocking FIFO
// queue.
//
// Queue is satisfied by both [Bounded] and [Unbounded]. Bounded
// additionally provides TryPush and Cap; those are deliberately absent
// here because the unbounded variant has no full state to probe and no
// fixed capacity to report.
type Queue[T any] interface {
	Producer[T]
	Consumer[T]
}

// Producer is the interface for adding elements.
//
// The element is passed by pointer to avoid copying large structs. The
// queue stores a copy of the pointed-to value, so the original can be
// modified after Push returns.
type Producer[T any] interface {
	// Push adds an element to the queue, blocking until space is
	// available. The element is copied into the queue's storage.
	Push(elem *T)
}

// Consumer is the interface for removing elements.
//
// Elements are returned by value, copied out of the queue's storage; the
// vacated storage is cleared so the garbage collector can reclaim any
// referenced objects.
type Consumer[T any] interface {
	// Pop removes and returns the oldest element, blocking while the
	// queue is empty.
	Pop() T

	// TryPop removes and returns the oldest element without blocking.
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	TryPop() (T, error)
}

var (
	_ Queue[int] = (*Bounded[int])(nil)
	_ Queue[int] = (*Unbounded[int])(nil)
)

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte
