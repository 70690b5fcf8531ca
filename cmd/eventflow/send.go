// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/eventflow/lib/receiver"
)

func runSend(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	var address string

	flagSet := newFlagSet("send", &common)
	flagSet.StringVar(&address, "address", "", "receiver address host:port (default: receiver.address)")
	flagSet.Usage = func() {
		fmt.Fprintln(stdout, "Usage: eventflow send [flags] FILE\n\nStreams FILE to a receiver waiting in \"eventflow run @net\".")
		flagSet.PrintDefaults()
	}
	if done, err := parseFlags(flagSet, args, stdout); done {
		return err
	}
	if flagSet.NArg() != 1 {
		return usagef("send: exactly one file is required")
	}

	cfg, err := loadConfig(&common)
	if err != nil {
		return err
	}
	if address == "" {
		address = cfg.Receiver.Address
	}
	logger := newLogger(stderr, common.verbose)

	path := flagSet.Arg(0)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	written, err := receiver.Send(ctx, address, file)
	if err != nil {
		return err
	}
	logger.Info("bucket file sent", "path", path, "address", address, "bytes", written)
	fmt.Fprintf(stdout, "sent %d bytes to %s\n", written, address)
	return nil
}
