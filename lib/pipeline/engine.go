// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

// ErrAborted is returned by Process when a handler's result was judged
// an abort. The run's State is RunAborted.
var ErrAborted = errors.New("pipeline: run aborted")

// Stats counts what one handler did across runs.
type Stats struct {
	// Seen is the number of messages the handler was invoked with.
	Seen int64
	// Passed counts invocations judged ActionContinue.
	Passed int64
	// Skipped counts invocations judged ActionSkipRest.
	Skipped int64
	// Aborted counts invocations judged ActionAbort.
	Aborted int64
}

// ChainEntry is a snapshot of one chain position.
type ChainEntry struct {
	Name  string
	Stats Stats
}

// RunReport describes the most recent run.
type RunReport struct {
	ID        string
	State     RunState
	Messages  int64
	Aggregate int64
}

type link[M any] struct {
	handler Handler[M]
	stats   Stats
}

// Engine drives messages of type M through an ordered handler chain.
// Process runs synchronously on the caller's goroutine; State, Chain
// and LastRun may be called from other goroutines.
type Engine[M any] struct {
	arbiter Arbiter
	logger  *slog.Logger

	mu     sync.Mutex
	chain  []*link[M]
	state  RunState
	report RunReport
}

// New creates an engine. A nil arbiter means a CountingArbiter; a nil
// logger means slog.Default().
func New[M any](arbiter Arbiter, logger *slog.Logger) *Engine[M] {
	if arbiter == nil {
		arbiter = NewCountingArbiter()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine[M]{arbiter: arbiter, logger: logger}
}

// PushBack appends handler to the end of the chain. Changing the chain
// while a run is active is a state error.
func (e *Engine[M]) PushBack(handler Handler[M]) error {
	if handler == nil {
		return fmt.Errorf("pipeline: nil handler")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == RunRunning {
		return fault.State("cannot add handler %q while a run is active", handler.Name())
	}
	e.chain = append(e.chain, &link[M]{handler: handler})
	return nil
}

// Len returns the number of handlers in the chain.
func (e *Engine[M]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.chain)
}

// Process pulls every message from source through the chain and
// returns the arbiter's aggregate. It returns nil when the run
// completes, an error wrapping ErrAborted when a handler aborts it, a
// fault.State error on an arbiter contract violation, ctx.Err() on
// cancellation, and the source's error when a pull fails. The aggregate
// is valid in every case.
func (e *Engine[M]) Process(ctx context.Context, source Source[M]) (int64, error) {
	e.mu.Lock()
	if e.state == RunRunning {
		e.mu.Unlock()
		return 0, fault.State("pipeline run already active")
	}
	e.state = RunRunning
	e.report = RunReport{ID: uuid.NewString(), State: RunRunning}
	chain := append([]*link[M](nil), e.chain...)
	runID := e.report.ID
	e.mu.Unlock()

	logger := e.logger.With("run", runID)
	logger.Debug("pipeline run started", "handlers", len(chain))

	e.arbiter.Begin()
	state, messages, err := e.run(ctx, source, chain, logger)
	aggregate := e.arbiter.Pop()

	e.mu.Lock()
	e.state = state
	e.report = RunReport{ID: runID, State: state, Messages: messages, Aggregate: aggregate}
	e.mu.Unlock()

	if err != nil && !errors.Is(err, ErrAborted) {
		logger.Error("pipeline run failed",
			"state", state.String(),
			"messages", messages,
			"aggregate", aggregate,
			"error", err,
		)
	} else {
		logger.Info("pipeline run finished",
			"state", state.String(),
			"messages", messages,
			"aggregate", aggregate,
		)
	}
	return aggregate, err
}

func (e *Engine[M]) run(ctx context.Context, source Source[M], chain []*link[M], logger *slog.Logger) (RunState, int64, error) {
	var messages int64
	for {
		if !e.arbiter.BetweenMessages() {
			logger.Debug("arbiter ended the run between messages", "messages", messages)
			return RunCompleted, messages, nil
		}
		if err := ctx.Err(); err != nil {
			return RunAborted, messages, err
		}

		message, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			return RunCompleted, messages, nil
		}
		if err != nil {
			return RunAborted, messages, fmt.Errorf("pulling message %d: %w", messages, err)
		}
		messages++

		completed := true
	handlers:
		for position, entry := range chain {
			if err := ctx.Err(); err != nil {
				return RunAborted, messages, err
			}
			name := entry.handler.Name()
			result := entry.handler.Handle(ctx, message)
			action, err := e.arbiter.Judge(position, name, result)
			e.record(entry, action)
			if err != nil {
				return RunAborted, messages, fmt.Errorf("judging message %d: %w", messages-1, err)
			}

			switch action {
			case ActionContinue:
			case ActionSkipRest:
				completed = false
				break handlers
			case ActionAbort:
				logger.Info("handler aborted the run", "handler", name, "position", position, "message", messages-1)
				return RunAborted, messages, fmt.Errorf("handler %q at position %d: %w", name, position, ErrAborted)
			default:
				return RunAborted, messages, fault.State("arbiter returned unknown action %s", action)
			}
		}
		e.arbiter.MessageDone(completed)
	}
}

func (e *Engine[M]) record(entry *link[M], action Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry.stats.Seen++
	switch action {
	case ActionContinue:
		entry.stats.Passed++
	case ActionSkipRest:
		entry.stats.Skipped++
	default:
		entry.stats.Aborted++
	}
}

// State returns the state of the current or most recent run.
func (e *Engine[M]) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// LastRun returns the report of the current or most recent run.
func (e *Engine[M]) LastRun() RunReport {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.report
}

// Chain returns a snapshot of every chain position in order.
func (e *Engine[M]) Chain() []ChainEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := make([]ChainEntry, len(e.chain))
	for i, entry := range e.chain {
		entries[i] = ChainEntry{Name: entry.handler.Name(), Stats: entry.stats}
	}
	return entries
}

// ResetStats zeroes every handler's counters. It is a state error
// during a run.
func (e *Engine[M]) ResetStats() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == RunRunning {
		return fault.State("cannot reset statistics while a run is active")
	}
	for _, entry := range e.chain {
		entry.stats = Stats{}
	}
	return nil
}
