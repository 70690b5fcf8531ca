// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"io"
)

// Source yields messages one at a time. Next returns io.EOF when no
// message remains.
type Source[M any] interface {
	Next(ctx context.Context) (M, error)
}

// Handler processes one message and returns a result code.
type Handler[M any] interface {
	Name() string
	Handle(ctx context.Context, message M) Result
}

// HandlerFunc is the function form of Handler.
type HandlerFunc[M any] func(ctx context.Context, message M) Result

type namedHandler[M any] struct {
	name string
	fn   HandlerFunc[M]
}

// NewHandler wraps fn as a Handler called name.
func NewHandler[M any](name string, fn HandlerFunc[M]) Handler[M] {
	return &namedHandler[M]{name: name, fn: fn}
}

func (h *namedHandler[M]) Name() string { return h.name }

func (h *namedHandler[M]) Handle(ctx context.Context, message M) Result {
	return h.fn(ctx, message)
}

// SliceSource serves the elements of a slice in order.
type SliceSource[M any] struct {
	items []M
	next  int
}

// NewSliceSource returns a source over items. The slice is not copied.
func NewSliceSource[M any](items []M) *SliceSource[M] {
	return &SliceSource[M]{items: items}
}

// Next returns the next element, or io.EOF after the last.
func (s *SliceSource[M]) Next(ctx context.Context) (M, error) {
	if s.next >= len(s.items) {
		var zero M
		return zero, io.EOF
	}
	item := s.items[s.next]
	s.next++
	return item, nil
}
