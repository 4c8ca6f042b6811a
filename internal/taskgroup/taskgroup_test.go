// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package taskgroup_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/bq/internal/taskgroup"
)

func TestRunExecutesAllWorkers(t *testing.T) {
	const n = 8

	var mu sync.Mutex
	seen := make(map[int]bool, n)

	g := taskgroup.Run(n, func(id int) {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
	})
	g.Join()

	if len(seen) != n {
		t.Fatalf("ran %d distinct workers, want %d", len(seen), n)
	}
	for id := range n {
		if !seen[id] {
			t.Fatalf("worker %d never ran", id)
		}
	}
}

func TestJoinIdempotent(t *testing.T) {
	g := taskgroup.Run(2, func(int) {})
	g.Join()
	g.Join()
}

func TestJoinPropagatesPanic(t *testing.T) {
	g := taskgroup.Run(2, func(id int) {
		if id == 1 {
			panic("worker failure")
		}
	})

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Join should re-panic with the worker's panic")
		}
		pe, ok := r.(*taskgroup.PanicError)
		if !ok {
			t.Fatalf("recovered %T, want *taskgroup.PanicError", r)
		}
		if pe.Value != "worker failure" {
			t.Fatalf("panic value: got %v, want %q", pe.Value, "worker failure")
		}
	}()
	g.Join()
}
