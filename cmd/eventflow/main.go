// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// eventflow packs, ships, inspects and processes bucket streams.
//
// Subcommands:
//
//	eventflow pack     newline-delimited events -> framed bucket file
//	eventflow inspect  list the buckets of a file
//	eventflow send     stream a bucket file to a listening receiver
//	eventflow run      read sources through the pipeline engine
//	eventflow version  print build information
//
// Each subcommand takes --config (or EVENTFLOW_CONFIG) for defaults;
// flags override the file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/eventflow/lib/config"
	"github.com/bureau-foundation/eventflow/lib/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(os.Stderr, "error: %v\n\n%s", err, usageText)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usageText = `Usage: eventflow <command> [flags] [arguments]

Commands:
  pack      pack newline-delimited events into a bucket file
  inspect   list the buckets in a bucket file
  send      stream a bucket file to a receiver
  run       process sources through the pipeline
  version   print build information

Run "eventflow <command> --help" for command flags.
`

// usageError marks command-line mistakes; main prints usage for them.
type usageError struct {
	message string
}

func (e *usageError) Error() string { return e.message }

func usagef(format string, args ...any) error {
	return &usageError{message: fmt.Sprintf(format, args...)}
}

// commandFunc runs one subcommand.
type commandFunc func(ctx context.Context, args []string, stdout, stderr io.Writer) error

var commands = map[string]commandFunc{
	"pack":    runPack,
	"inspect": runInspect,
	"send":    runSend,
	"run":     runRun,
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return usagef("no command given")
	}
	switch args[0] {
	case "version", "--version":
		version.Fprint(stdout, "eventflow")
		return nil
	case "help", "--help", "-h":
		fmt.Fprint(stdout, usageText)
		return nil
	}
	command, ok := commands[args[0]]
	if !ok {
		return usagef("unknown command %q", args[0])
	}
	return command(ctx, args[1:], stdout, stderr)
}

// commonFlags are registered on every subcommand's flag set.
type commonFlags struct {
	configPath string
	verbose    bool
}

func newFlagSet(name string, common *commonFlags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("eventflow "+name, pflag.ContinueOnError)
	flagSet.StringVar(&common.configPath, "config", "", "path to eventflow.yaml (default: $EVENTFLOW_CONFIG)")
	flagSet.BoolVarP(&common.verbose, "verbose", "v", false, "log at debug level")
	return flagSet
}

// parseFlags parses args and maps --help to a nil-error early return,
// reported through done.
func parseFlags(flagSet *pflag.FlagSet, args []string, stdout io.Writer) (done bool, err error) {
	flagSet.SetOutput(stdout)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return true, usagef("%v", err)
	}
	return false, nil
}

// loadConfig resolves the configuration: --config, then
// EVENTFLOW_CONFIG, then built-in defaults.
func loadConfig(common *commonFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case common.configPath != "":
		cfg, err = config.LoadFile(common.configPath)
	case os.Getenv("EVENTFLOW_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a JSON logger on w at Info, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
