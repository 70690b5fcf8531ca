// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package receiver

import (
	"context"
	"fmt"
	"io"
	"net"
)

// Send dials address, streams every byte of source, and half-closes the
// connection so the receiver observes end of stream. It returns the
// number of bytes written. Cancelling ctx aborts the transfer.
func Send(ctx context.Context, address string, source io.Reader) (int64, error) {
	var dialer net.Dialer
	connection, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return 0, fmt.Errorf("dialing receiver %s: %w", address, err)
	}
	defer connection.Close()

	stop := context.AfterFunc(ctx, func() { connection.Close() })
	defer stop()

	written, err := io.Copy(connection, source)
	if err != nil {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		return written, fmt.Errorf("sending to %s after %d bytes: %w", address, written, err)
	}
	if tcp, ok := connection.(*net.TCPConn); ok {
		if err := tcp.CloseWrite(); err != nil {
			return written, fmt.Errorf("half-closing connection to %s: %w", address, err)
		}
	}
	return written, nil
}
