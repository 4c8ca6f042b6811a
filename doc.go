// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package bq provides blocking FIFO queue implementations.
//
// The package offers two thread-safe multi-producer multi-consumer
// queue variants with different capacity and allocation tradeoffs,
// plus the spinlock primitive they are built on:
//
//   - Bounded: fixed-capacity ring of slots, ticket/turn protocol,
//     purely atomic (no locks)
//   - BoundedIndirect: the same protocol for uintptr handles, with turn
//     and value packed into one 128-bit atomic per slot
//   - Unbounded: linked nodes with per-end spinlocks and a lock-free
//     free-list that recycles nodes instead of allocating
//   - SpinLock: test-and-test-and-set exclusive lock, usable as a
//     sync.Locker for short-held critical sections
//
// # Quick Start
//
//	q := bq.NewBounded[Event](1024)   // capacity must be a power of 2
//	u := bq.NewUnbounded[*Request]()
//
// # Basic Usage
//
// Both queues expose a blocking pair and a non-blocking pair of entry
// points. Blocking calls return only when they have transferred an
// element; non-blocking calls return [ErrWouldBlock] instead of waiting:
//
//	// Blocking: returns once the element is in the queue
//	v := 42
//	q.Push(&v)
//
//	// Non-blocking: fails immediately when the queue is full
//	if err := q.TryPush(&v); bq.IsWouldBlock(err) {
//	    // handle backpressure
//	}
//
//	// Blocking: waits for an element
//	elem := q.Pop()
//
//	// Non-blocking: fails immediately when the queue is empty
//	elem, err := q.TryPop()
//	if bq.IsWouldBlock(err) {
//	    // nothing available right now
//	}
//
// # Choosing a Variant
//
// Bounded trades flexibility for predictability: all storage is allocated
// up front, operations never touch the allocator, and a full queue applies
// backpressure to producers. Use it for pipelines whose depth you want to
// cap.
//
// BoundedIndirect suits pooled designs where elements are indices or
// handles rather than values: the packed slot entry publishes turn and
// value in a single atomic operation.
//
// Unbounded trades backpressure for elasticity: pushes always succeed and
// detached nodes are parked on a lock-free free-list for reuse, so the
// allocator is only consulted while the live node count is still growing.
// Use it when producers must never wait on consumers.
//
// # Common Patterns
//
// Pipeline stage with bounded depth:
//
//	q := bq.NewBounded[Data](1024)
//
//	go func() { // Producer
//	    for data := range input {
//	        q.Push(&data) // blocks while the stage is 1024 deep
//	    }
//	}()
//
//	go func() { // Consumer
//	    for {
//	        process(q.Pop())
//	    }
//	}()
//
// Caller-side retry around the non-blocking entry points:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.TryPush(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if !bq.IsWouldBlock(err) {
//	        return err // Unexpected error
//	    }
//	    backoff.Wait()
//	}
//
// Work distribution without a depth cap:
//
//	u := bq.NewUnbounded[Task]()
//
//	for range numWorkers {
//	    go func() {
//	        for {
//	            task := u.Pop() // sleeps while the queue is empty
//	            task.Execute()
//	        }
//	    }()
//	}
//
//	func Submit(t Task) {
//	    u.Push(&t)
//	}
//
// # Ordering Guarantees
//
// Both queues are strict FIFO across all producers and consumers. In the
// bounded queue, tickets establish a total order: the n-th successful
// push-family call is matched to the n-th successful pop-family call.
// In the unbounded queue, order follows from the single insertion point
// and single removal point of the linked list.
//
// # Error Handling
//
// The non-blocking entry points return [ErrWouldBlock] when they cannot
// proceed. This error is sourced from [code.hybscloud.com/iox] for
// ecosystem consistency; it is a control flow signal, not a failure.
//
//	bq.IsWouldBlock(err)  // true if queue full/empty
//	bq.IsSemantic(err)    // true if control flow signal
//	bq.IsNonFailure(err)  // true if nil or ErrWouldBlock
//
// Construction misuse (a bounded capacity that is not a power of two
// greater than one) panics.
//
// # Blocking Semantics
//
// There is no cancellation or timeout support. A blocking call returns
// only when its condition is satisfied; callers needing bounded wait
// times should layer a deadline over the Try variants in a retry loop.
//
// Bounded's blocking calls spin-wait on the claimed slot with CPU pause
// hints. Unbounded's Pop sleeps on a condition variable paired with the
// front lock, so an empty queue costs no CPU.
//
// # Memory Ordering
//
// Every publish of a value to another thread (slot turn update, end
// pointer update, free-list head update) uses release ordering; every
// read gating progress past another thread's write uses acquire
// ordering. Spin loops use relaxed loads while waiting and escalate to
// acquire only on the check that actually gates progress.
//
// # Race Detection
//
// Go's race detector cannot observe happens-before relationships
// established through atomic memory orderings on separate variables, and
// reports false positives for the slot turn protocol. Tests incompatible
// with race detection are excluded via //go:build !race.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/iox] for semantic errors,
// [code.hybscloud.com/atomix] for atomic primitives with explicit
// memory ordering, and [code.hybscloud.com/spin] for CPU pause
// instructions.
package bq
