// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets time-dependent code run against a controllable
// clock in tests.
//
// Components take a [Clock] (nil meaning [Real]); tests pass a
// [FakeClock] and move time explicitly with [FakeClock.Advance]. A
// goroutine blocked in Sleep or waiting on After is released only by an
// Advance that reaches its deadline, so latency-heavy paths such as a
// simulated resource cycle run instantly and deterministically.
package clock
