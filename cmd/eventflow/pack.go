// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/eventflow/lib/bucket"
	"github.com/bureau-foundation/eventflow/lib/decompress"
)

// maxEventLine bounds one newline-delimited event.
const maxEventLine = 16 << 20

func runPack(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	var algorithm, output string
	var perBucket, prefixWidth int

	flagSet := newFlagSet("pack", &common)
	flagSet.StringVarP(&algorithm, "algorithm", "a", "", "compression algorithm (default: writer.algorithm)")
	flagSet.IntVarP(&perBucket, "per-bucket", "n", 0, "events per bucket (default: writer.events_per_bucket)")
	flagSet.StringVarP(&output, "output", "o", "", "bucket file to write (required)")
	flagSet.IntVar(&prefixWidth, "prefix-width", 0, "frame length width, 4 or 8 (default: reader.prefix_width)")
	flagSet.Usage = func() {
		fmt.Fprintln(stdout, "Usage: eventflow pack -o FILE [flags] [INPUT...]\n\nReads one event per line from each INPUT (or stdin) and writes framed buckets.")
		flagSet.PrintDefaults()
	}
	if done, err := parseFlags(flagSet, args, stdout); done {
		return err
	}
	if output == "" {
		return usagef("pack: --output is required")
	}

	cfg, err := loadConfig(&common)
	if err != nil {
		return err
	}
	if algorithm != "" {
		cfg.Writer.Algorithm = algorithm
	}
	if perBucket != 0 {
		cfg.Writer.EventsPerBucket = perBucket
	}
	if prefixWidth != 0 {
		cfg.Reader.PrefixWidth = prefixWidth
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(stderr, common.verbose)

	code, err := decompress.ParseCode(cfg.Writer.Algorithm)
	if err != nil {
		return err
	}
	events, err := readEvents(flagSet.Args())
	if err != nil {
		return err
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	buffered := bufio.NewWriter(file)
	writer, err := bucket.NewWriter(buffered, bucket.WriterConfig{
		Algorithm:   code,
		PrefixWidth: cfg.Reader.PrefixWidth,
		Logger:      logger,
	})
	if err != nil {
		file.Close()
		return err
	}
	if _, err := writer.WriteBatches(events, cfg.Writer.EventsPerBucket); err != nil {
		file.Close()
		return err
	}
	if err := buffered.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", output, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", output, err)
	}

	fmt.Fprintf(stdout, "packed %d events into %d buckets (%s) -> %s\n",
		writer.Events(), writer.Buckets(), code, output)
	return nil
}

// readEvents collects one event per line from each path, or stdin when
// paths is empty or names "-". Empty lines are skipped.
func readEvents(paths []string) ([][]byte, error) {
	if len(paths) == 0 {
		paths = []string{"-"}
	}
	var events [][]byte
	for _, path := range paths {
		var source io.Reader = os.Stdin
		if path != "-" {
			file, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("opening input: %w", err)
			}
			defer file.Close()
			source = file
		}
		scanner := bufio.NewScanner(source)
		scanner.Buffer(make([]byte, 0, 64<<10), maxEventLine)
		for scanner.Scan() {
			if len(scanner.Bytes()) == 0 {
				continue
			}
			events = append(events, append([]byte(nil), scanner.Bytes()...))
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return events, nil
}
