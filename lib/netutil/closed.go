// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, a closed connection, a broken pipe, or a connection
// reset. A peer that exits without a graceful shutdown produces
// ECONNRESET or EPIPE instead of EOF on the surviving side.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	return IsPeerReset(err)
}

// IsPeerReset reports whether err is an abrupt termination by the peer
// (ECONNRESET or EPIPE), as opposed to an orderly close.
func IsPeerReset(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == unix.ECONNRESET || errno == unix.EPIPE
	}
	return false
}
