// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// invoke runs the command line with a clean environment and returns
// stdout.
func invoke(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EVENTFLOW_CONFIG", "")
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func writeLines(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "events.txt")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func packFixture(t *testing.T, algorithm string) string {
	t.Helper()
	dir := t.TempDir()
	input := writeLines(t, dir, "alpha-0", "beta-1", "alpha-2", "", "beta-3", "alpha-4")
	output := filepath.Join(dir, "events.bkt")
	stdout, err := invoke(t, "pack", "--algorithm", algorithm, "--per-bucket", "2", "-o", output, input)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !strings.Contains(stdout, "packed 5 events into 3 buckets") {
		t.Fatalf("pack output = %q", stdout)
	}
	return output
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantUsage bool
		wantOut   string
	}{
		{name: "no command", args: nil, wantUsage: true},
		{name: "unknown command", args: []string{"frobnicate"}, wantUsage: true},
		{name: "help", args: []string{"help"}, wantOut: "Commands:"},
		{name: "version", args: []string{"version"}, wantOut: "eventflow "},
		{name: "subcommand help", args: []string{"pack", "--help"}, wantOut: "--per-bucket"},
		{name: "bad flag", args: []string{"run", "--no-such-flag"}, wantUsage: true},
		{name: "pack without output", args: []string{"pack"}, wantUsage: true},
		{name: "inspect without files", args: []string{"inspect"}, wantUsage: true},
		{name: "send without file", args: []string{"send"}, wantUsage: true},
		{name: "run without sources", args: []string{"run"}, wantUsage: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			stdout, err := invoke(t, test.args...)
			var usage *usageError
			if test.wantUsage {
				if !errors.As(err, &usage) {
					t.Fatalf("err = %v, want usage error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(stdout, test.wantOut) {
				t.Errorf("stdout = %q, want it to contain %q", stdout, test.wantOut)
			}
		})
	}
}

func TestPackInspectRun(t *testing.T) {
	for _, algorithm := range []string{"none", "lz4", "zstd", "gzip", "s2", "brotli"} {
		t.Run(algorithm, func(t *testing.T) {
			path := packFixture(t, algorithm)

			stdout, err := invoke(t, "inspect", path)
			if err != nil {
				t.Fatalf("inspect: %v", err)
			}
			if !strings.Contains(stdout, "3 buckets, 5 events") {
				t.Errorf("inspect output = %q", stdout)
			}

			stdout, err = invoke(t, "run", "--chain", path)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if !strings.Contains(stdout, "completed: 5 events, 5 passed") {
				t.Errorf("run output = %q", stdout)
			}
			if !strings.Contains(stdout, "measure") {
				t.Errorf("run --chain output lacks handler table: %q", stdout)
			}
		})
	}
}

func TestRunMatchAndLimit(t *testing.T) {
	path := packFixture(t, "zstd")

	stdout, err := invoke(t, "run", "--match", "alpha", path)
	if err != nil {
		t.Fatalf("run --match: %v", err)
	}
	if !strings.Contains(stdout, "5 events, 3 passed") {
		t.Errorf("run --match output = %q", stdout)
	}

	stdout, err = invoke(t, "run", "--limit", "2", path)
	if err != nil {
		t.Fatalf("run --limit: %v", err)
	}
	if !strings.Contains(stdout, "2 events, 2 passed") {
		t.Errorf("run --limit output = %q", stdout)
	}

	stdout, err = invoke(t, "run", "--max-events", "4", path)
	if err != nil {
		t.Fatalf("run --max-events: %v", err)
	}
	if !strings.Contains(stdout, "4 events, 4 passed") {
		t.Errorf("run --max-events output = %q", stdout)
	}
}

func TestRunWithCollateral(t *testing.T) {
	path := packFixture(t, "lz4")
	stdout, err := invoke(t, "run", "--collateral", path)
	if err != nil {
		t.Fatalf("run --collateral: %v", err)
	}
	if !strings.Contains(stdout, "collateral: ") {
		t.Errorf("run --collateral output = %q", stdout)
	}
	if !strings.Contains(stdout, "5 events, 5 passed") {
		t.Errorf("run --collateral output = %q", stdout)
	}
}

func TestRunConfigFile(t *testing.T) {
	path := packFixture(t, "s2")
	configPath := filepath.Join(t.TempDir(), "eventflow.yaml")
	config := "reader:\n  sources: [\"" + path + "\"]\n  max_events: 3\n"
	if err := os.WriteFile(configPath, []byte(config), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	stdout, err := invoke(t, "run", "--config", configPath)
	if err != nil {
		t.Fatalf("run --config: %v", err)
	}
	if !strings.Contains(stdout, "3 events, 3 passed") {
		t.Errorf("run --config output = %q", stdout)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	path := packFixture(t, "none")
	_, err := invoke(t, "run", "--prefix-width", "3", path)
	if err == nil || !strings.Contains(err.Error(), "prefix_width") {
		t.Errorf("err = %v, want prefix_width validation error", err)
	}
}

func TestPackUnknownAlgorithm(t *testing.T) {
	dir := t.TempDir()
	input := writeLines(t, dir, "one")
	_, err := invoke(t, "pack", "--algorithm", "snappy", "-o", filepath.Join(dir, "out.bkt"), input)
	if err == nil || !strings.Contains(err.Error(), "writer.algorithm") {
		t.Errorf("err = %v, want writer.algorithm validation error", err)
	}
}

func TestSendUnreachable(t *testing.T) {
	path := packFixture(t, "none")
	if _, err := invoke(t, "send", "--address", "127.0.0.1:1", path); err == nil {
		t.Error("send to a closed port should fail")
	}
}
