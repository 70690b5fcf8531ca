// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collateral

import (
	"context"
	"sync"
	"time"

	"github.com/bureau-foundation/eventflow/lib/clock"
	"github.com/bureau-foundation/eventflow/lib/fault"
)

// SimulatedResource stands in for real hardware or a remote session:
// Use blocks for Latency on Clock and records the parameters it was
// given. Failures can be injected per call.
type SimulatedResource[P any] struct {
	Clock   clock.Clock
	Latency time.Duration

	mu         sync.Mutex
	held       bool
	acquired   int
	released   int
	seen       []P
	acquireErr error
	useErr     error
}

// FailNextAcquire makes the next Acquire return err.
func (r *SimulatedResource[P]) FailNextAcquire(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acquireErr = err
}

// FailNextUse makes the next Use return err after its latency.
func (r *SimulatedResource[P]) FailNextUse(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.useErr = err
}

func (r *SimulatedResource[P]) Acquire(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.acquireErr; err != nil {
		r.acquireErr = nil
		return err
	}
	if r.held {
		return fault.State("simulated resource acquired twice")
	}
	r.held = true
	r.acquired++
	return nil
}

func (r *SimulatedResource[P]) Use(ctx context.Context, params P) error {
	r.mu.Lock()
	if !r.held {
		r.mu.Unlock()
		return fault.State("simulated resource used without Acquire")
	}
	r.seen = append(r.seen, params)
	r.mu.Unlock()

	source := r.Clock
	if source == nil {
		source = clock.Real()
	}
	if err := clock.SleepContext(ctx, source, r.Latency); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.useErr; err != nil {
		r.useErr = nil
		return err
	}
	return nil
}

func (r *SimulatedResource[P]) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.held {
		return fault.State("simulated resource released without Acquire")
	}
	r.held = false
	r.released++
	return nil
}

// Seen returns the parameters of every Use call in order.
func (r *SimulatedResource[P]) Seen() []P {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]P(nil), r.seen...)
}

// Counts returns how many times the resource was acquired and
// released.
func (r *SimulatedResource[P]) Counts() (acquired, released int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquired, r.released
}
