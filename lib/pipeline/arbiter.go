// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "github.com/bureau-foundation/eventflow/lib/fault"

// Arbiter is the flow-control policy of a run. The engine calls Begin
// once at the start of a run, BetweenMessages before every pull,
// Judge after every handler invocation, MessageDone after each message
// leaves the chain, and Pop once when the run ends.
type Arbiter interface {
	// Begin resets per-run state.
	Begin()

	// Judge interprets the result handler name at chain position
	// returned. An error is a contract violation and aborts the run.
	Judge(position int, name string, result Result) (Action, error)

	// BetweenMessages reports whether the run should pull another
	// message. Returning false completes the run.
	BetweenMessages() bool

	// MessageDone records that a message left the chain; completed is
	// true when every handler returned continue.
	MessageDone(completed bool)

	// Pop returns the aggregate result of the run.
	Pop() int64
}

// CountingArbiter maps the three result codes to their matching
// actions and aggregates the number of messages that ran through the
// whole chain. Any other result code is a contract violation.
type CountingArbiter struct {
	// Limit stops the run between messages once this many messages
	// have completed the chain. Zero means no limit.
	Limit int64

	completed int64
	skipped   int64
}

// NewCountingArbiter returns a CountingArbiter with no limit.
func NewCountingArbiter() *CountingArbiter {
	return &CountingArbiter{}
}

func (a *CountingArbiter) Begin() {
	a.completed = 0
	a.skipped = 0
}

func (a *CountingArbiter) Judge(position int, name string, result Result) (Action, error) {
	switch result {
	case ResultContinue:
		return ActionContinue, nil
	case ResultSkip:
		return ActionSkipRest, nil
	case ResultAbort:
		return ActionAbort, nil
	default:
		return ActionAbort, fault.State("handler %q at position %d returned invalid result %s", name, position, result)
	}
}

func (a *CountingArbiter) BetweenMessages() bool {
	return a.Limit == 0 || a.completed < a.Limit
}

func (a *CountingArbiter) MessageDone(completed bool) {
	if completed {
		a.completed++
	} else {
		a.skipped++
	}
}

func (a *CountingArbiter) Pop() int64 {
	return a.completed
}

// Skipped returns the number of messages that left the chain early in
// the current or last run.
func (a *CountingArbiter) Skipped() int64 {
	return a.skipped
}
