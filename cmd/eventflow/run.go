// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/eventflow/lib/bucket"
	"github.com/bureau-foundation/eventflow/lib/clock"
	"github.com/bureau-foundation/eventflow/lib/collateral"
	"github.com/bureau-foundation/eventflow/lib/config"
	"github.com/bureau-foundation/eventflow/lib/decompress"
	"github.com/bureau-foundation/eventflow/lib/pipeline"
	"github.com/bureau-foundation/eventflow/lib/receiver"
)

// calibration is the parameter block the collateral job hands to its
// resource: the bucket that triggered the cycle and how many events
// had been seen at that point.
type calibration struct {
	Bucket string
	Events int64
}

func runRun(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var common commonFlags
	var match string
	var limit int64
	var maxEvents, prefixWidth int
	var withCollateral, showChain bool

	flagSet := newFlagSet("run", &common)
	flagSet.StringVar(&match, "match", "", "skip events whose payload does not contain this substring")
	flagSet.Int64Var(&limit, "limit", 0, "stop after this many events pass the chain (0: no limit)")
	flagSet.IntVar(&maxEvents, "max-events", 0, "cap on events read (default: reader.max_events)")
	flagSet.IntVar(&prefixWidth, "prefix-width", 0, "frame length width, 4 or 8 (default: reader.prefix_width)")
	flagSet.BoolVar(&withCollateral, "collateral", false, "run a collateral cycle for every new bucket")
	flagSet.BoolVar(&showChain, "chain", false, "print per-handler statistics after the run")
	flagSet.Usage = func() {
		fmt.Fprintln(stdout, "Usage: eventflow run [flags] [SOURCE...]\n\nSOURCE is a bucket file or @net to accept one connection on receiver.address.\nWith no SOURCE arguments, reader.sources from the configuration is used.")
		flagSet.PrintDefaults()
	}
	if done, err := parseFlags(flagSet, args, stdout); done {
		return err
	}

	cfg, err := loadConfig(&common)
	if err != nil {
		return err
	}
	if flagSet.NArg() > 0 {
		cfg.Reader.Sources = flagSet.Args()
	}
	if maxEvents != 0 {
		cfg.Reader.MaxEvents = maxEvents
	}
	if prefixWidth != 0 {
		cfg.Reader.PrefixWidth = prefixWidth
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Reader.Sources) == 0 {
		return usagef("run: no sources given")
	}
	logger := newLogger(stderr, common.verbose)
	wall := clock.Real()

	reader, network, err := newReader(cfg, logger)
	if err != nil {
		return err
	}
	defer reader.Close()
	if network != nil {
		defer network.Close()
	}

	arbiter := &pipeline.CountingArbiter{Limit: limit}
	engine := pipeline.New[*bucket.Event](arbiter, logger)

	var job *collateral.Job[calibration]
	var group *errgroup.Group
	var results []collateral.Result[calibration]
	stopDrain := func() {}
	if withCollateral {
		resource := &collateral.SimulatedResource[calibration]{
			Clock:   wall,
			Latency: cfg.Collateral.Latency,
		}
		job = collateral.New(resource, calibration{}, collateral.Options{
			Logger:       logger,
			ResultBuffer: cfg.Collateral.ResultBuffer,
		})
		if err := job.Start(ctx); err != nil {
			return err
		}
		var drainCtx context.Context
		drainCtx, stopDrain = context.WithCancel(ctx)
		defer stopDrain()
		group, drainCtx = errgroup.WithContext(drainCtx)
		group.Go(func() error {
			for {
				select {
				case result := <-job.Results():
					results = append(results, result)
				case <-drainCtx.Done():
					return nil
				}
			}
		})
		if err := engine.PushBack(collateralHandler(job)); err != nil {
			return err
		}
	}

	if match != "" {
		needle := []byte(match)
		err := engine.PushBack(pipeline.NewHandler("match", func(ctx context.Context, event *bucket.Event) pipeline.Result {
			if bytes.Contains(event.Payload, needle) {
				return pipeline.ResultContinue
			}
			return pipeline.ResultSkip
		}))
		if err != nil {
			return err
		}
	}

	var payloadBytes int64
	err = engine.PushBack(pipeline.NewHandler("measure", func(ctx context.Context, event *bucket.Event) pipeline.Result {
		payloadBytes += int64(len(event.Payload))
		return pipeline.ResultContinue
	}))
	if err != nil {
		return err
	}

	started := wall.Now()
	aggregate, runErr := engine.Process(ctx, bucket.NewEventSource(reader))
	elapsed := clock.Since(wall, started)

	if job != nil {
		if err := job.Close(); err != nil {
			logger.Warn("closing collateral job", "error", err)
		}
		stopDrain()
		group.Wait()
		for drained := false; !drained; {
			select {
			case result := <-job.Results():
				results = append(results, result)
			default:
				drained = true
			}
		}
	}

	if runErr != nil && !errors.Is(runErr, pipeline.ErrAborted) {
		return runErr
	}

	report := engine.LastRun()
	stats := reader.Stats()
	fmt.Fprintf(stdout, "run %s %s: %d events, %d passed, %d payload bytes in %s\n",
		report.ID, report.State, report.Messages, aggregate, payloadBytes, elapsed.Round(time.Microsecond))
	fmt.Fprintf(stdout, "sources %d, buckets %d, decompressions %d, dedup hits %d\n",
		stats.Sources, stats.Buckets, stats.Decompressions, stats.DedupHits)

	if job != nil {
		jobStats := job.Stats()
		fmt.Fprintf(stdout, "collateral: %d cycles, %d failures, %d results dropped\n",
			jobStats.Cycles, jobStats.Failures, jobStats.Dropped)
		for _, result := range results {
			status := "ok"
			if result.Err != nil {
				status = result.Err.Error()
			}
			fmt.Fprintf(stdout, "  cycle %d bucket=%s events=%d %s\n",
				result.Seq, result.Params.Bucket, result.Params.Events, status)
		}
	}

	if showChain {
		table := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(table, "HANDLER\tSEEN\tPASSED\tSKIPPED\tABORTED")
		for _, entry := range engine.Chain() {
			fmt.Fprintf(table, "%s\t%d\t%d\t%d\t%d\n", entry.Name,
				entry.Stats.Seen, entry.Stats.Passed, entry.Stats.Skipped, entry.Stats.Aborted)
		}
		table.Flush()
	}
	return runErr
}

// collateralHandler refreshes the job's parameters and requests a
// cycle whenever an event opens a new bucket. It sits first in the
// chain so filtering never hides a bucket boundary from it.
func collateralHandler(job *collateral.Job[calibration]) pipeline.Handler[*bucket.Event] {
	var seen int64
	return pipeline.NewHandler("collateral", func(ctx context.Context, event *bucket.Event) pipeline.Result {
		seen++
		if event.Index != 0 {
			return pipeline.ResultContinue
		}
		hash, events := event.Bucket.Short(), seen
		job.Modify(func(params *calibration) bool {
			params.Bucket = hash
			params.Events = events
			return true
		})
		job.Notify()
		return pipeline.ResultContinue
	})
}

// newReader builds a bucket reader from cfg. A receiver is created only
// when a source is the network token; the caller closes it.
func newReader(cfg *config.Config, logger *slog.Logger) (*bucket.Reader, *receiver.Receiver, error) {
	decompressors := decompress.NewDefaultRegistry(decompress.Options{
		AutoConstruct: cfg.Reader.AutoConstruct,
		Logger:        logger,
	})
	if !cfg.Reader.AutoConstruct {
		if err := decompressors.Preload(); err != nil {
			return nil, nil, err
		}
	}

	readerConfig := bucket.ReaderConfig{
		Sources:        cfg.Reader.Sources,
		Decompressors:  decompressors,
		MaxEvents:      cfg.Reader.MaxEvents,
		PrefixWidth:    cfg.Reader.PrefixWidth,
		DedupCacheSize: cfg.Reader.DedupCacheSize,
		Logger:         logger,
	}
	var network *receiver.Receiver
	if slices.Contains(cfg.Reader.Sources, bucket.NetworkToken) {
		var err error
		network, err = receiver.New(receiver.Config{
			Address:       cfg.Receiver.Address,
			InitialBuffer: cfg.Receiver.InitialBuffer,
			MaxSize:       cfg.Receiver.MaxSize,
			IdleTimeout:   cfg.Receiver.IdleTimeout,
			Logger:        logger,
		})
		if err != nil {
			return nil, nil, err
		}
		readerConfig.Network = network
	}
	reader, err := bucket.NewReader(readerConfig)
	if err != nil {
		if network != nil {
			network.Close()
		}
		return nil, nil, err
	}
	return reader, network, nil
}
