// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bq

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// SpinLock is a test-and-test-and-set exclusive lock.
//
// Lock spins on a relaxed load while the lock is held, issuing CPU pause
// hints, and attempts the acquiring atomic operation only once the lock
// appears free. This keeps waiters from generating cache-coherence
// traffic while contended.
//
// SpinLock implements [sync.Locker], so it composes with [sync.Cond] and
// can guard callers' own short-held critical sections. There is no
// fairness guarantee and no reentrancy; unlocking a SpinLock the caller
// does not hold leaves the lock in an undefined state.
//
// The zero value is an unlocked SpinLock. A SpinLock must not be copied
// after first use.
type SpinLock struct {
	state atomix.Uint64
}

var _ sync.Locker = (*SpinLock)(nil)

const (
	spinUnlocked = 0
	spinLocked   = 1
)

// Lock blocks the calling goroutine until it holds the lock exclusively.
func (l *SpinLock) Lock() {
	sw := spin.Wait{}
	for {
		// Optimistically assume the lock is free on the first try.
		if l.state.CompareAndSwapAcqRel(spinUnlocked, spinLocked) {
			return
		}
		// Wait for release without generating coherence traffic.
		for l.state.LoadRelaxed() != spinUnlocked {
			sw.Once()
		}
	}
}

// TryLock attempts to acquire the lock without blocking and reports
// whether it succeeded.
func (l *SpinLock) TryLock() bool {
	// Relaxed pre-check keeps while(!TryLock()) callers off the cache line.
	return l.state.LoadRelaxed() == spinUnlocked &&
		l.state.CompareAndSwapAcqRel(spinUnlocked, spinLocked)
}

// Unlock releases the lock. The caller must currently hold it.
func (l *SpinLock) Unlock() {
	l.state.StoreRelease(spinUnlocked)
}
