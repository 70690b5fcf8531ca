// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import "context"

// EventSource adapts a Reader to the pull contract of a pipeline
// source: the first Next initializes the reader, later calls pull the
// following events, and io.EOF ends the stream.
type EventSource struct {
	reader  *Reader
	started bool
}

// NewEventSource wraps reader, which must not have been initialized.
func NewEventSource(reader *Reader) *EventSource {
	return &EventSource{reader: reader}
}

// Next returns the next event.
func (s *EventSource) Next(ctx context.Context) (*Event, error) {
	if !s.started {
		s.started = true
		return s.reader.Initialize(ctx)
	}
	return s.reader.Next(ctx)
}

// Reader returns the wrapped reader.
func (s *EventSource) Reader() *Reader { return s.reader }
