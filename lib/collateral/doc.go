// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package collateral shares one expensive resource between a dedicated
// worker goroutine and any number of producer goroutines.
//
// A [Job] owns a parameter value of type P guarded by a mutex. Producers
// change it through [Job.Modify], a registered [Participant], or a
// [Guard] obtained from [Job.Lock] that can be handed to another
// goroutine before it is unlocked. [Job.Notify] asks the worker to run
// one cycle:
//
//	Acquire -> copy parameters under the lock -> Use(copy) -> Release
//
// Use runs on the copy, so producers are never blocked by a slow cycle.
// The job never retries: a failed cycle is reported on [Job.Results] and
// the job goes back to waiting for the next notification.
//
// Notifications coalesce. While idle, Notify schedules a cycle. While a
// cycle runs, the first Notify queues exactly one pending cycle and
// further calls are absorbed into it, so a burst of notifications
// during a long cycle costs one extra cycle that sees the latest
// parameters.
package collateral
