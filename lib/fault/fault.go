// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"errors"
	"fmt"
)

// Category classifies a failure so callers can decide whether to stop
// the run, skip the input, or treat the error as a programming bug
// without parsing message text.
type Category string

const (
	// CategoryWireFormat indicates bytes that do not match the bucket
	// framing or record encoding: a malformed length prefix, a
	// truncated frame, a record or bucket that fails to parse, or a
	// decompressed length beyond the announced bound. Fatal for the
	// current source.
	CategoryWireFormat Category = "wire_format"

	// CategoryNotFound indicates a lookup by code or name that has no
	// registered constructor: an unknown decompression algorithm or an
	// unknown collector name. Not retried.
	CategoryNotFound Category = "not_found"

	// CategoryTransient indicates a condition that is logged and
	// skipped: an empty source path, a zero-length decompression
	// result, a peer reset mid-transfer.
	CategoryTransient Category = "transient"

	// CategoryState indicates a contract violation by the caller: using
	// a reader before Initialize, closing twice, mutating a chain
	// during a run, an arbiter receiving an invalid result code.
	CategoryState Category = "state"
)

// Error is a categorized error. It wraps an inner error so the full
// chain stays visible to errors.Is and errors.As.
type Error struct {
	// Category classifies the error for programmatic handling.
	Category Category

	// Err is the underlying error with the human-readable message.
	Err error
}

// Error returns the underlying error message.
func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// WireFormat creates a wire-format error.
func WireFormat(format string, args ...any) *Error {
	return &Error{Category: CategoryWireFormat, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Transient creates a transient error.
func Transient(format string, args ...any) *Error {
	return &Error{Category: CategoryTransient, Err: fmt.Errorf(format, args...)}
}

// State creates a state-violation error.
func State(format string, args ...any) *Error {
	return &Error{Category: CategoryState, Err: fmt.Errorf(format, args...)}
}

// CategoryOf returns the category of the first *Error in err's chain,
// or the empty category if there is none.
func CategoryOf(err error) Category {
	var categorized *Error
	if errors.As(err, &categorized) {
		return categorized.Category
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given
// category.
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}
