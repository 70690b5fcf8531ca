// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LogCapture collects text-formatted log output from any goroutine.
type LogCapture struct {
	mu     sync.Mutex
	buffer bytes.Buffer
}

// NewLogCapture returns a capture and a Debug-level logger writing to it.
func NewLogCapture() (*LogCapture, *slog.Logger) {
	capture := &LogCapture{}
	logger := slog.New(slog.NewTextHandler(capture, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return capture, logger
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.Write(p)
}

// String returns everything logged so far.
func (c *LogCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffer.String()
}

// Contains reports whether any logged line contains substring.
func (c *LogCapture) Contains(substring string) bool {
	return strings.Contains(c.String(), substring)
}

// Count returns how many logged lines contain substring.
func (c *LogCapture) Count(substring string) int {
	count := 0
	for _, line := range strings.Split(c.String(), "\n") {
		if strings.Contains(line, substring) {
			count++
		}
	}
	return count
}
