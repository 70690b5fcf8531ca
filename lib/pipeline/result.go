// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "fmt"

// Result is the code a handler returns for one message.
type Result int

const (
	// ResultContinue lets the message proceed down the chain.
	ResultContinue Result = iota

	// ResultSkip stops the chain for this message only.
	ResultSkip

	// ResultAbort ends the run.
	ResultAbort
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultSkip:
		return "skip"
	case ResultAbort:
		return "abort"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Action is the arbiter's decision after a handler invocation.
type Action int

const (
	ActionContinue Action = iota
	ActionSkipRest
	ActionAbort
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionSkipRest:
		return "skip-rest"
	case ActionAbort:
		return "abort"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// RunState is the engine's position in a run.
type RunState int

const (
	// RunIdle: no run has started since construction.
	RunIdle RunState = iota
	RunRunning
	// RunCompleted: the source was exhausted (or the arbiter stopped
	// between messages) without an abort.
	RunCompleted
	// RunAborted: an abort action, a contract violation, a source
	// error, or context cancellation ended the run.
	RunAborted
)

// String returns the state name.
func (s RunState) String() string {
	switch s {
	case RunIdle:
		return "idle"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunAborted:
		return "aborted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}
