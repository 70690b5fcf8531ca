// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// ListenReusable opens a TCP listener on address with SO_REUSEADDR set,
// so a receiver restarted on the same port does not fail while the
// previous socket sits in TIME_WAIT.
func ListenReusable(ctx context.Context, address string) (net.Listener, error) {
	config := net.ListenConfig{Control: reuseAddress}
	listener, err := config.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	return listener, nil
}

func reuseAddress(network, address string, raw syscall.RawConn) error {
	var optionErr error
	err := raw.Control(func(fd uintptr) {
		optionErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	if optionErr != nil {
		return fmt.Errorf("setting SO_REUSEADDR on %s: %w", address, optionErr)
	}
	return nil
}
