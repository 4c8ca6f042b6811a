// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// qend is one end of the unbounded queue: a spinlock plus the index of
// the node at that end. Front and back are independent; each end's
// contention never stalls the other.
type qend struct {
	lock SpinLock
	ptr  atomix.Uint64 // node index
}

// Unbounded is a linked blocking MPMC queue with no capacity limit.
//
// The node referenced by back is always an uninitialized placeholder:
// the next cell to receive a pushed value, never a currently valid
// element. Push constructs the value into the existing placeholder,
// links a freshly obtained node behind it and advances back, so no
// dummy-swap step is needed. The queue is empty exactly when the front
// node's successor is absent.
//
// Nodes live in a chunked arena and are addressed by stable index.
// Detached nodes are parked on a lock-free free-list (a CAS stack whose
// head pairs the top index with a version counter, so a stale
// index-version pair never passes the CAS and reuse cannot be confused
// with the ABA problem). The allocator is only consulted while the live
// node count is still growing.
//
// Push takes only the back lock; Pop and TryPop take only the front
// lock. Pop sleeps on a condition variable while the queue is empty. A
// push that turns the queue non-empty hands the wakeup over under the
// front lock, so a consumer between its emptiness check and its wait
// cannot miss it.
type Unbounded[T any] struct {
	_        pad
	freeHead atomix.Uint128 // lo=version, hi=top node index (nilNode if empty)
	_        pad
	front    qend
	_        pad
	back     qend
	_        pad
	count    atomix.Int64 // linked elements; consumers' wait predicate
	_        pad
	notEmpty sync.Cond // paired with front.lock
	nodes    nodeArena[T]
}

// NewUnbounded creates a new unbounded queue holding one shared
// placeholder node.
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{}
	q.freeHead.StoreRelaxed(0, nilNode)
	placeholder := q.nodes.alloc()
	q.front.ptr.StoreRelease(placeholder)
	q.back.ptr.StoreRelease(placeholder)
	q.notEmpty.L = &q.front.lock
	return q
}

// obtain returns the index of a node with no value and no successor,
// recycling from the free-list before falling back to the arena.
func (q *Unbounded[T]) obtain() uint64 {
	sw := spin.Wait{}
	for {
		ver, head := q.freeHead.LoadAcquire()
		if head == nilNode {
			return q.nodes.alloc()
		}
		next := q.nodes.at(head).next.LoadAcquire()
		if q.freeHead.CompareAndSwapAcqRel(ver, head, ver+1, next) {
			q.nodes.at(head).next.StoreRelaxed(nilNode)
			return head
		}
		sw.Once()
	}
}

// recycle parks a detached node on the free-list for reuse. The node's
// value is cleared first: the queue no longer owns whatever the value
// referenced, and holding on to it would keep it from the garbage
// collector for as long as the node sits on the free-list.
func (q *Unbounded[T]) recycle(idx uint64) {
	n := q.nodes.at(idx)
	var zero T
	n.val = zero

	sw := spin.Wait{}
	for {
		ver, head := q.freeHead.LoadAcquire()
		n.next.StoreRelaxed(head)
		if q.freeHead.CompareAndSwapAcqRel(ver, head, ver+1, idx) {
			return
		}
		sw.Once()
	}
}

// Push adds an element to the back of the queue.
//
// The node for the next placeholder is obtained outside the critical
// section; allocation may be slow. Only the back lock is taken. When the
// push turns the queue non-empty, the signal is delivered under the
// front lock so no sleeping consumer can miss it.
func (q *Unbounded[T]) Push(elem *T) {
	idx := q.obtain()

	q.back.lock.Lock()
	tail := q.nodes.at(q.back.ptr.LoadAcquire())
	tail.val = *elem
	// The release store of next is the publication point: a front-side
	// acquire load that observes the link also observes the value, even
	// when the queue was empty and the front lock is not held here.
	tail.next.StoreRelease(idx)
	q.back.ptr.StoreRelease(idx)
	wasEmpty := q.count.Add(1) == 1
	q.back.lock.Unlock()

	if wasEmpty {
		q.front.lock.Lock()
		q.notEmpty.Signal()
		q.front.lock.Unlock()
	}
}

// popFront detaches the front node and returns its value. The caller
// must hold front.lock with at least one element linked; the lock is
// released before the detached node is recycled.
func (q *Unbounded[T]) popFront() T {
	headIdx := q.front.ptr.LoadAcquire()
	head := q.nodes.at(headIdx)
	elem := head.val
	q.front.ptr.StoreRelease(head.next.LoadAcquire())
	if q.count.Add(-1) > 0 {
		// More elements remain; pass the wakeup to the next waiter.
		q.notEmpty.Signal()
	}
	q.front.lock.Unlock()
	q.recycle(headIdx)
	return elem
}

// Pop removes and returns the oldest element, sleeping on the condition
// variable while the queue is empty.
func (q *Unbounded[T]) Pop() T {
	q.front.lock.Lock()
	for q.count.Load() == 0 {
		q.notEmpty.Wait()
	}
	return q.popFront()
}

// TryPop removes and returns the oldest element without blocking.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Unbounded[T]) TryPop() (T, error) {
	var zero T
	if q.count.Load() == 0 {
		return zero, ErrWouldBlock
	}
	q.front.lock.Lock()
	if q.count.Load() == 0 {
		q.front.lock.Unlock()
		return zero, ErrWouldBlock
	}
	return q.popFront(), nil
}

// Empty reports whether the queue held no elements at the moment of the
// call: the front node has no successor. The state changes concurrently,
// so the result is advisory for any purpose other than quiescent checks.
func (q *Unbounded[T]) Empty() bool {
	head := q.nodes.at(q.front.ptr.LoadAcquire())
	return head.next.LoadAcquire() == nilNode
}
