// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collateral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/eventflow/lib/clock"
	"github.com/bureau-foundation/eventflow/lib/fault"
)

// DefaultResultBuffer is the capacity of the Results channel when
// Options.ResultBuffer is zero.
const DefaultResultBuffer = 16

// Resource is the expensive thing a Job cycles. Acquire and Release
// bracket every Use; none of them is called concurrently with another.
type Resource[P any] interface {
	Acquire(ctx context.Context) error
	Use(ctx context.Context, params P) error
	Release() error
}

// Options configures a Job.
type Options struct {
	// Clock timestamps cycles. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives cycle and drop messages. Nil means
	// slog.Default().
	Logger *slog.Logger

	// ResultBuffer is the capacity of the Results channel. Zero means
	// DefaultResultBuffer.
	ResultBuffer int
}

// Result reports one finished cycle.
type Result[P any] struct {
	// Seq numbers cycles from 1 in the order they started.
	Seq int64

	// Params is the parameter copy the cycle used. It is the zero value
	// when Acquire failed before the copy was taken.
	Params P

	Started  time.Time
	Finished time.Time

	// Err is non-nil when Acquire, Use or Release failed.
	Err error
}

// Job runs resource cycles on a dedicated goroutine when notified.
type Job[P any] struct {
	resource Resource[P]
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	wake    *sync.Cond
	params  P
	pending bool
	running bool
	started bool

	// closed stops the worker; closeCalled guards Close itself.
	closed      bool
	closeCalled bool

	seq         int64
	cycles      int
	failures    int
	dropped     int
	lastUsed    P
	hasLastUsed bool

	participants map[string]*Participant[P]

	results chan Result[P]
	done    chan struct{}
}

// New creates a Job over resource with initial parameters. The worker
// does not run until Start.
func New[P any](resource Resource[P], initial P, options Options) *Job[P] {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.ResultBuffer <= 0 {
		options.ResultBuffer = DefaultResultBuffer
	}
	job := &Job[P]{
		resource:     resource,
		clock:        options.Clock,
		logger:       options.Logger,
		params:       initial,
		participants: make(map[string]*Participant[P]),
		results:      make(chan Result[P], options.ResultBuffer),
		done:         make(chan struct{}),
	}
	job.wake = sync.NewCond(&job.mu)
	return job
}

// Start launches the worker goroutine. Cancelling ctx stops the worker
// after any in-progress cycle, like Close; the cycle itself runs under a
// context that ctx cancellation does not reach. Starting twice, or after
// Close, is a state error.
func (j *Job[P]) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fault.State("collateral job is closed")
	}
	if j.started {
		return fault.State("collateral job already started")
	}
	j.started = true

	context.AfterFunc(ctx, j.shutdown)
	go j.loop(ctx)
	return nil
}

// Notify requests a cycle. It returns true when this call scheduled a
// new pending cycle and false when a pending cycle already existed (the
// request was coalesced into it) or the job is closed.
func (j *Job[P]) Notify() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed || j.pending {
		return false
	}
	j.pending = true
	j.wake.Signal()
	return true
}

func (j *Job[P]) loop(ctx context.Context) {
	defer close(j.done)
	cycleContext := context.WithoutCancel(ctx)
	for {
		j.mu.Lock()
		for !j.pending && !j.closed {
			j.wake.Wait()
		}
		if j.closed {
			j.mu.Unlock()
			return
		}
		j.pending = false
		j.running = true
		j.seq++
		seq := j.seq
		j.mu.Unlock()

		result := j.cycle(cycleContext, seq)

		j.mu.Lock()
		j.running = false
		j.cycles++
		if result.Err != nil {
			j.failures++
		}
		j.mu.Unlock()

		j.deliver(result)
	}
}

// cycle runs Acquire, the parameter copy, Use and Release once.
func (j *Job[P]) cycle(ctx context.Context, seq int64) Result[P] {
	result := Result[P]{Seq: seq, Started: j.clock.Now()}
	finish := func(err error) Result[P] {
		result.Err = err
		result.Finished = j.clock.Now()
		return result
	}

	if err := j.resource.Acquire(ctx); err != nil {
		return finish(fmt.Errorf("cycle %d: acquiring resource: %w", seq, err))
	}

	j.mu.Lock()
	params := j.params
	j.lastUsed = params
	j.hasLastUsed = true
	j.mu.Unlock()
	result.Params = params

	var errs []error
	if err := j.resource.Use(ctx, params); err != nil {
		errs = append(errs, fmt.Errorf("cycle %d: using resource: %w", seq, err))
	}
	if err := j.resource.Release(); err != nil {
		errs = append(errs, fmt.Errorf("cycle %d: releasing resource: %w", seq, err))
	}
	return finish(errors.Join(errs...))
}

// deliver publishes result without blocking the worker.
func (j *Job[P]) deliver(result Result[P]) {
	if result.Err != nil {
		j.logger.Warn("collateral cycle failed", "seq", result.Seq, "error", result.Err)
	} else {
		j.logger.Debug("collateral cycle finished",
			"seq", result.Seq,
			"duration", result.Finished.Sub(result.Started),
		)
	}
	select {
	case j.results <- result:
	default:
		j.mu.Lock()
		j.dropped++
		j.mu.Unlock()
		j.logger.Warn("collateral result dropped, results channel full", "seq", result.Seq)
	}
}

// Results delivers one Result per finished cycle. Results are dropped
// with a warning when nobody keeps up with the channel.
func (j *Job[P]) Results() <-chan Result[P] { return j.results }

// Modify applies mutate to a copy of the parameters under the job lock
// and commits the copy only if mutate returns true. The copy is
// shallow: reference-typed fields are shared with the committed value.
func (j *Job[P]) Modify(mutate func(*P) bool) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	candidate := j.params
	if !mutate(&candidate) {
		return false
	}
	j.params = candidate
	return true
}

// Snapshot returns a copy of the current parameters.
func (j *Job[P]) Snapshot() P {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.params
}

// LastUsed returns the parameters of the most recent cycle that got
// past Acquire.
func (j *Job[P]) LastUsed() (P, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastUsed, j.hasLastUsed
}

// Stats is a point-in-time view of the job.
type Stats struct {
	Cycles   int
	Failures int
	Dropped  int
	Running  bool
	Pending  bool
}

// Stats returns the job's counters and scheduling state.
func (j *Job[P]) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{
		Cycles:   j.cycles,
		Failures: j.failures,
		Dropped:  j.dropped,
		Running:  j.running,
		Pending:  j.pending,
	}
}

// Cycles returns the number of finished cycles.
func (j *Job[P]) Cycles() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cycles
}

// Close stops the worker after any in-progress cycle and waits for it
// to exit. A pending cycle that has not started is discarded. Closing
// twice is a state error.
func (j *Job[P]) Close() error {
	j.mu.Lock()
	if j.closeCalled {
		j.mu.Unlock()
		return fault.State("collateral job closed twice")
	}
	j.closeCalled = true
	j.closed = true
	j.pending = false
	j.wake.Broadcast()
	started := j.started
	j.mu.Unlock()

	if started {
		<-j.done
	}
	return nil
}

// shutdown stops the worker on context cancellation. Close remains
// callable once afterwards.
func (j *Job[P]) shutdown() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	j.pending = false
	j.wake.Broadcast()
}
