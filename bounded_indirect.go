// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// BoundedIndirect is a fixed-capacity blocking MPMC queue for uintptr
// values (pool indices, handles).
//
// Same ticket/turn protocol as [Bounded], with the slot's turn and value
// packed into a single 128-bit atomic entry (lo=turn, hi=value), so the
// hot path publishes with one atomic operation instead of two.
//
// Entry format: [lo=turn | hi=value]
//
// Memory: capacity slots, 16 bytes of payload per slot padded to a cache
// line.
type BoundedIndirect struct {
	_        pad
	tail     atomix.Uint64 // Next ticket to be produced
	_        pad
	head     atomix.Uint64 // Next ticket to be consumed
	_        pad
	buffer   []bounded128Slot
	mask     uint64
	capacity uint64
}

type bounded128Slot struct {
	entry atomix.Uint128 // lo=turn, hi=value
	_     [64 - 16]byte  // Pad to cache line
}

// NewBoundedIndirect creates a new bounded queue for uintptr values with
// exactly the given capacity. The capacity must be a power of two greater
// than 1; anything else is a usage error and panics.
func NewBoundedIndirect(capacity int) *BoundedIndirect {
	if capacity <= 1 || capacity&(capacity-1) != 0 {
		panic("bq: capacity must be a power of two greater than 1")
	}

	n := uint64(capacity)
	return &BoundedIndirect{
		buffer:   make([]bounded128Slot, n),
		mask:     n - 1,
		capacity: n,
	}
}

func (q *BoundedIndirect) writeTurn(ticket uint64) uint64 {
	return ticket / q.capacity * 2
}

func (q *BoundedIndirect) readTurn(ticket uint64) uint64 {
	return ticket/q.capacity*2 + 1
}

// Push adds an element to the queue, blocking while the queue is full.
func (q *BoundedIndirect) Push(elem uintptr) {
	ticket := q.tail.AddAcqRel(1) - 1
	slot := &q.buffer[ticket&q.mask]
	turn := q.writeTurn(ticket)

	sw := spin.Wait{}
	for {
		lo, hi := slot.entry.LoadAcquire()
		if lo == turn {
			// The claimed ticket owns this slot, so the entry cannot
			// change underneath the CAS.
			if slot.entry.CompareAndSwapAcqRel(lo, hi, turn+1, uint64(elem)) {
				return
			}
		}
		sw.Once()
	}
}

// Pop removes and returns the oldest element, blocking while the queue
// is empty.
func (q *BoundedIndirect) Pop() uintptr {
	ticket := q.head.AddAcqRel(1) - 1
	slot := &q.buffer[ticket&q.mask]
	turn := q.readTurn(ticket)

	sw := spin.Wait{}
	for {
		lo, hi := slot.entry.LoadAcquire()
		if lo == turn {
			if slot.entry.CompareAndSwapAcqRel(lo, hi, turn+1, 0) {
				return uintptr(hi)
			}
		}
		sw.Once()
	}
}

// TryPush adds an element to the queue without blocking.
// Returns ErrWouldBlock if the queue is full at this instant.
func (q *BoundedIndirect) TryPush(elem uintptr) error {
	sw := spin.Wait{}
	ticket := q.tail.LoadAcquire()
	for {
		slot := &q.buffer[ticket&q.mask]
		turn := q.writeTurn(ticket)
		lo, hi := slot.entry.LoadAcquire()

		if lo == turn {
			if q.tail.CompareAndSwapAcqRel(ticket, ticket+1) {
				// The slot is frozen until its owner advances the turn,
				// and we just became the owner.
				for !slot.entry.CompareAndSwapAcqRel(turn, hi, turn+1, uint64(elem)) {
					_, hi = slot.entry.LoadAcquire()
				}
				return nil
			}
			ticket = q.tail.LoadAcquire()
		} else {
			old := ticket
			ticket = q.tail.LoadAcquire()
			if ticket == old {
				return ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// TryPop removes and returns the oldest element without blocking.
// Returns (0, ErrWouldBlock) if the queue is empty at this instant.
func (q *BoundedIndirect) TryPop() (uintptr, error) {
	sw := spin.Wait{}
	ticket := q.head.LoadAcquire()
	for {
		slot := &q.buffer[ticket&q.mask]
		turn := q.readTurn(ticket)
		lo, hi := slot.entry.LoadAcquire()

		if lo == turn {
			if q.head.CompareAndSwapAcqRel(ticket, ticket+1) {
				for !slot.entry.CompareAndSwapAcqRel(turn, hi, turn+1, 0) {
					_, hi = slot.entry.LoadAcquire()
				}
				return uintptr(hi), nil
			}
			ticket = q.head.LoadAcquire()
		} else {
			old := ticket
			ticket = q.head.LoadAcquire()
			if ticket == old {
				return 0, ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// Cap returns the queue capacity.
func (q *BoundedIndirect) Cap() int {
	return int(q.capacity)
}
