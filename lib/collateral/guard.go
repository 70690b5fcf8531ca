// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collateral

import "sync/atomic"

// Guard is ownership of the job's parameter lock. It may be passed to
// another goroutine, which then calls Unlock; exactly one Unlock is
// allowed. While a Guard is held the worker cannot copy parameters and
// other producers cannot modify them.
type Guard[P any] struct {
	job      *Job[P]
	released atomic.Bool
}

// Lock takes the parameter lock and returns its Guard.
func (j *Job[P]) Lock() *Guard[P] {
	j.mu.Lock()
	return &Guard[P]{job: j}
}

// Params returns the guarded parameters for in-place mutation. The
// pointer must not be used after Unlock.
func (g *Guard[P]) Params() *P {
	if g.released.Load() {
		panic("collateral: Params on an unlocked guard")
	}
	return &g.job.params
}

// Unlock releases the lock. Unlocking twice panics.
func (g *Guard[P]) Unlock() {
	if !g.released.CompareAndSwap(false, true) {
		panic("collateral: guard unlocked twice")
	}
	g.job.mu.Unlock()
}
