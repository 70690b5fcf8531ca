// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs messages through an ordered chain of handlers
// under the control of an [Arbiter].
//
// An [Engine] pulls messages one at a time from a [Source] until the
// source returns io.EOF. For each message it invokes the handlers in
// registration order. After every invocation the arbiter turns the
// handler's [Result] into an [Action]:
//
//   - ActionContinue: the next handler sees the message.
//   - ActionSkipRest: no further handler sees this message; the run
//     continues with the next one.
//   - ActionAbort: the run ends immediately. No handler runs again for
//     this or any later message.
//
// Before each pull the arbiter's BetweenMessages hook may end the run
// early, and once per run Pop yields the aggregate result. The default
// [CountingArbiter] reports the number of messages that passed through
// the whole chain.
//
// The engine is synchronous. Context cancellation is observed only at
// handler boundaries: a handler already running is never interrupted.
// The chain is built once with PushBack; the engine can then be reused
// for any number of runs.
package pipeline
