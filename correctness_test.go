// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq_test

import (
	"sort"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/bq"
	"code.hybscloud.com/bq/internal/taskgroup"
	"code.hybscloud.com/iox"
)

// =============================================================================
// Test Helpers
// =============================================================================

// retryWithTimeout retries f until it returns true or timeout expires.
// Reports failure with the given message if timeout is reached.
func retryWithTimeout(t *testing.T, timeout time.Duration, f func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	backoff := iox.Backoff{}
	for !f() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout after %v: %s", timeout, msg)
		}
		backoff.Wait()
	}
}

// collector accumulates consumed values under a SpinLock, the way a
// caller would use the lock for its own short critical sections.
type collector struct {
	mu   bq.SpinLock
	vals []int
}

func (c *collector) add(v int) {
	c.mu.Lock()
	c.vals = append(c.vals, v)
	c.mu.Unlock()
}

func (c *collector) sorted() []int {
	c.mu.Lock()
	out := append([]int(nil), c.vals...)
	c.mu.Unlock()
	sort.Ints(out)
	return out
}

// =============================================================================
// SPSC Ordering
// =============================================================================

// TestBoundedSPSCOrder pushes 1..1000 through a capacity-256 ring from
// one goroutine and pops from another; the consumer must observe exactly
// the pushed sequence.
func TestBoundedSPSCOrder(t *testing.T) {
	if bq.RaceEnabled {
		t.Skip("skip: turn protocol uses cross-variable memory ordering")
	}

	const n = 1000
	q := bq.NewBounded[int](256)
	out := make([]int, 0, n)

	producers := taskgroup.Run(1, func(int) {
		for i := 1; i <= n; i++ {
			q.Push(&i)
		}
	})
	consumers := taskgroup.Run(1, func(int) {
		for range n {
			out = append(out, q.Pop())
		}
	})
	producers.Join()
	consumers.Join()

	if _, err := q.TryPop(); !bq.IsWouldBlock(err) {
		t.Fatalf("TryPop after drain: got %v, want ErrWouldBlock", err)
	}
	for i, v := range out {
		if v != i+1 {
			t.Fatalf("out[%d]: got %d, want %d", i, v, i+1)
		}
	}
}

func TestUnboundedSPSCOrder(t *testing.T) {
	if bq.RaceEnabled {
		t.Skip("skip: free-list uses cross-variable memory ordering")
	}

	const n = 1000
	q := bq.NewUnbounded[int]()
	out := make([]int, 0, n)

	producers := taskgroup.Run(1, func(int) {
		for i := 1; i <= n; i++ {
			q.Push(&i)
		}
	})
	consumers := taskgroup.Run(1, func(int) {
		for range n {
			out = append(out, q.Pop())
		}
	})
	producers.Join()
	consumers.Join()

	if !q.Empty() {
		t.Fatal("queue should be empty after drain")
	}
	for i, v := range out {
		if v != i+1 {
			t.Fatalf("out[%d]: got %d, want %d", i, v, i+1)
		}
	}
}

// =============================================================================
// MPMC Multiset Conservation
// =============================================================================

// mpmcConservation drives numP producers pushing disjoint value ranges
// and numC consumers draining until every value is consumed, then checks
// that the consumed multiset equals the pushed multiset.
func mpmcConservation(t *testing.T, push func(v int), tryPop func() (int, error)) {
	t.Helper()

	const (
		numP    = 4
		numC    = 4
		perProd = 1000
		total   = numP * perProd
	)

	var consumed atomix.Int64
	var out collector

	producers := taskgroup.Run(numP, func(id int) {
		for i := range perProd {
			push(id*perProd + i)
		}
	})
	consumers := taskgroup.Run(numC, func(int) {
		for consumed.Load() < total {
			v, err := tryPop()
			if err != nil {
				continue
			}
			out.add(v)
			consumed.Add(1)
		}
	})
	producers.Join()
	consumers.Join()

	got := out.sorted()
	if len(got) != total {
		t.Fatalf("consumed %d values, want %d", len(got), total)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("sorted[%d]: got %d, want %d (lost or duplicated value)", i, v, i)
		}
	}
}

func TestBoundedMPMCConservation(t *testing.T) {
	if bq.RaceEnabled {
		t.Skip("skip: turn protocol uses cross-variable memory ordering")
	}

	q := bq.NewBounded[int](256)
	mpmcConservation(t,
		func(v int) { q.Push(&v) },
		q.TryPop,
	)
}

func TestBoundedIndirectMPMCConservation(t *testing.T) {
	if bq.RaceEnabled {
		t.Skip("skip: turn protocol uses cross-variable memory ordering")
	}

	q := bq.NewBoundedIndirect(256)
	mpmcConservation(t,
		func(v int) { q.Push(uintptr(v) + 1) },
		func() (int, error) {
			v, err := q.TryPop()
			if err != nil {
				return 0, err
			}
			return int(v) - 1, nil
		},
	)
}

// TestUnboundedMPMCConservation runs the conservation check with
// heap-allocated elements, the closest Go analog of a move-only type:
// the queue hands the same object from producer to consumer.
func TestUnboundedMPMCConservation(t *testing.T) {
	if bq.RaceEnabled {
		t.Skip("skip: free-list uses cross-variable memory ordering")
	}

	q := bq.NewUnbounded[*int]()
	mpmcConservation(t,
		func(v int) {
			p := &v
			q.Push(&p)
		},
		func() (int, error) {
			p, err := q.TryPop()
			if err != nil {
				return 0, err
			}
			return *p, nil
		},
	)
	if !q.Empty() {
		t.Fatal("queue should be empty after conservation run")
	}
}

// TestBoundedMPMCBlockingMix lets producers and consumers use the
// blocking entry points so backpressure paths are exercised under
// contention: a tiny ring forces every generation handoff to wait.
func TestBoundedMPMCBlockingMix(t *testing.T) {
	if bq.RaceEnabled {
		t.Skip("skip: turn protocol uses cross-variable memory ordering")
	}

	const (
		numP    = 4
		numC    = 4
		perProd = 1000
		total   = numP * perProd
	)

	q := bq.NewBounded[int](4)
	var sum atomix.Int64

	producers := taskgroup.Run(numP, func(id int) {
		for i := range perProd {
			v := id*perProd + i
			q.Push(&v)
		}
	})
	consumers := taskgroup.Run(numC, func(int) {
		for range perProd {
			sum.Add(int64(q.Pop()))
		}
	})
	producers.Join()
	consumers.Join()

	want := int64(total) * int64(total-1) / 2
	if sum.Load() != want {
		t.Fatalf("consumed sum: got %d, want %d", sum.Load(), want)
	}
	if _, err := q.TryPop(); !bq.IsWouldBlock(err) {
		t.Fatalf("TryPop after drain: got %v, want ErrWouldBlock", err)
	}
}
