// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides helpers shared by package tests: bounded
// channel waits that fail the test instead of hanging it, and slog
// loggers that discard or capture output.
package testutil
