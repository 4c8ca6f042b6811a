// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package taskgroup runs a fixed count of goroutines executing the same
// function and joins them. It is driver scaffolding for concurrent
// tests, not part of the queue implementations.
package taskgroup

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Group is a set of running goroutines. Join must be called before the
// Group goes out of use; it is safe to call more than once.
type Group struct {
	wg sync.WaitGroup

	mu    sync.Mutex
	first *PanicError
}

// PanicError wraps a panic recovered from a group goroutine.
type PanicError struct {
	Value any
	Stack string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("taskgroup: goroutine panicked: %v\n%s", p.Value, p.Stack)
}

// Run starts n goroutines, each executing fn with a worker id in [0, n).
// Panics are recovered and surfaced by Join.
func Run(n int, fn func(id int)) *Group {
	g := &Group{}
	g.wg.Add(n)
	for i := range n {
		go func() {
			defer g.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					g.mu.Lock()
					if g.first == nil {
						g.first = &PanicError{Value: r, Stack: string(debug.Stack())}
					}
					g.mu.Unlock()
				}
			}()
			fn(i)
		}()
	}
	return g
}

// Join blocks until every goroutine has returned. If any goroutine
// panicked, Join re-panics with the first recovered value so the failure
// is not silently swallowed.
func (g *Group) Join() {
	g.wg.Wait()
	g.mu.Lock()
	first := g.first
	g.mu.Unlock()
	if first != nil {
		panic(first)
	}
}
