// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/bureau-foundation/eventflow/lib/bucket"
)

func runInspect(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	var prefixWidth int

	flagSet := newFlagSet("inspect", &common)
	flagSet.IntVar(&prefixWidth, "prefix-width", 0, "frame length width, 4 or 8 (default: reader.prefix_width)")
	flagSet.Usage = func() {
		fmt.Fprintln(stdout, "Usage: eventflow inspect [flags] FILE...\n\nLists the non-empty buckets of each FILE with hash, algorithm, sizes and event count.")
		flagSet.PrintDefaults()
	}
	if done, err := parseFlags(flagSet, args, stdout); done {
		return err
	}
	if flagSet.NArg() == 0 {
		return usagef("inspect: at least one file is required")
	}

	cfg, err := loadConfig(&common)
	if err != nil {
		return err
	}
	if prefixWidth != 0 {
		cfg.Reader.PrefixWidth = prefixWidth
	}

	reader, err := bucket.NewReader(bucket.ReaderConfig{
		Sources:     flagSet.Args(),
		PrefixWidth: cfg.Reader.PrefixWidth,
		Logger:      newLogger(stderr, common.verbose),
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	table := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "SOURCE\tBUCKET\tALGORITHM\tCOMPRESSED\tORIGINAL\tEVENTS")

	buckets, events := 0, 0
	_, err = reader.Initialize(ctx)
	for err == nil {
		deflated := reader.Deflated()
		decoded, decodeErr := reader.Bucket()
		if decodeErr != nil {
			err = decodeErr
			break
		}
		fmt.Fprintf(table, "%s\t%s\t%s\t%d\t%d\t%d\n",
			reader.Source(), reader.Hash().Short(), deflated.Algorithm,
			len(deflated.Payload), deflated.OriginalSize, decoded.Count())
		buckets++
		events += decoded.Count()
		err = reader.NextBucket(ctx)
	}
	table.Flush()
	if !errors.Is(err, io.EOF) {
		return err
	}
	fmt.Fprintf(stdout, "%d buckets, %d events\n", buckets, events)
	return nil
}
