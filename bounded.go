// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Bounded is a fixed-capacity blocking MPMC queue.
//
// Every operation claims a ticket from an unbounded monotonic counter
// (tail for producers, head for consumers). A ticket maps to the slot at
// ticket&(capacity-1) and to a generation ticket/capacity. Each slot
// carries its own turn counter: even turn 2g hands the slot to the
// generation-g producer, odd turn 2g+1 hands it to the matching consumer.
// The turn protocol, not a counted semaphore, is the backpressure
// mechanism: a producer whose slot has not been drained by the previous
// generation's consumer waits on that slot alone.
//
// All operations are linearizable at the point the fetch-add or CAS on
// head/tail succeeds, which makes the queue strict FIFO across all
// producers and consumers.
//
// Memory: capacity slots allocated once at construction, one cache line
// per slot. Operations never touch the allocator.
type Bounded[T any] struct {
	_        pad
	tail     atomix.Uint64 // Next ticket to be produced
	_        pad
	head     atomix.Uint64 // Next ticket to be consumed
	_        pad
	buffer   []boundedSlot[T]
	mask     uint64
	capacity uint64
}

type boundedSlot[T any] struct {
	turn atomix.Uint64
	data T
	_    padShort // Pad to cache line
}

// NewBounded creates a new bounded queue with exactly the given capacity.
// The capacity must be a power of two greater than 1; anything else is a
// usage error and panics. The queue never resizes.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 1 || capacity&(capacity-1) != 0 {
		panic("bq: capacity must be a power of two greater than 1")
	}

	n := uint64(capacity)
	return &Bounded[T]{
		buffer:   make([]boundedSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
}

// writeTurn returns the even slot turn at which the holder of ticket may
// produce.
func (q *Bounded[T]) writeTurn(ticket uint64) uint64 {
	return ticket / q.capacity * 2
}

// readTurn returns the odd slot turn at which the holder of ticket may
// consume.
func (q *Bounded[T]) readTurn(ticket uint64) uint64 {
	return ticket/q.capacity*2 + 1
}

// Push adds an element to the queue, blocking while the queue is full.
//
// The ticket is claimed unconditionally, so the call cannot fail; it
// spin-waits until the slot for the claimed ticket has been drained by
// the previous generation's consumer.
func (q *Bounded[T]) Push(elem *T) {
	ticket := q.tail.AddAcqRel(1) - 1
	slot := &q.buffer[ticket&q.mask]
	turn := q.writeTurn(ticket)

	sw := spin.Wait{}
	for slot.turn.LoadAcquire() != turn {
		sw.Once()
	}

	slot.data = *elem
	slot.turn.StoreRelease(turn + 1)
}

// Pop removes and returns the oldest element, blocking while the queue
// is empty.
func (q *Bounded[T]) Pop() T {
	ticket := q.head.AddAcqRel(1) - 1
	slot := &q.buffer[ticket&q.mask]
	turn := q.readTurn(ticket)

	sw := spin.Wait{}
	for slot.turn.LoadAcquire() != turn {
		sw.Once()
	}

	elem := slot.data
	var zero T
	slot.data = zero
	slot.turn.StoreRelease(turn + 1)
	return elem
}

// TryPush adds an element to the queue without blocking.
// Returns ErrWouldBlock if the queue is full at this instant.
//
// A candidate ticket is read speculatively and claimed with a CAS only
// once its slot is writable. When the slot is not ready, the call
// distinguishes "another producer got there first" (retry with a fresh
// ticket) from "the queue is genuinely full" (tail unchanged since the
// last read) and only the latter fails.
func (q *Bounded[T]) TryPush(elem *T) error {
	sw := spin.Wait{}
	ticket := q.tail.LoadAcquire()
	for {
		slot := &q.buffer[ticket&q.mask]
		turn := q.writeTurn(ticket)

		if slot.turn.LoadAcquire() == turn {
			if q.tail.CompareAndSwapAcqRel(ticket, ticket+1) {
				slot.data = *elem
				slot.turn.StoreRelease(turn + 1)
				return nil
			}
			// Another producer claimed this ticket; take a fresh one.
			ticket = q.tail.LoadAcquire()
		} else {
			old := ticket
			ticket = q.tail.LoadAcquire()
			if ticket == old {
				// Ticket still valid but its slot is not drained:
				// the queue is full for this instant.
				return ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// TryPop removes and returns the oldest element without blocking.
// Returns (zero-value, ErrWouldBlock) if the queue is empty at this
// instant. The full/empty disambiguation mirrors TryPush on the head
// counter and the odd read turn.
func (q *Bounded[T]) TryPop() (T, error) {
	sw := spin.Wait{}
	ticket := q.head.LoadAcquire()
	for {
		slot := &q.buffer[ticket&q.mask]
		turn := q.readTurn(ticket)

		if slot.turn.LoadAcquire() == turn {
			if q.head.CompareAndSwapAcqRel(ticket, ticket+1) {
				elem := slot.data
				var zero T
				slot.data = zero
				slot.turn.StoreRelease(turn + 1)
				return elem, nil
			}
			// Another consumer claimed this ticket; take a fresh one.
			ticket = q.head.LoadAcquire()
		} else {
			old := ticket
			ticket = q.head.LoadAcquire()
			if ticket == old {
				var zero T
				return zero, ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int {
	return int(q.capacity)
}
