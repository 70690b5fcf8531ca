// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

// Set at link time with -ldflags "-X .../lib/version.Version=...".
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
)

// Commit returns the VCS revision: the link-time value if set,
// otherwise the one the Go toolchain stamped into the build.
func Commit() string {
	if GitCommit != "" {
		return GitCommit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	revision, modified := "", false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if len(revision) > 12 {
		revision = revision[:12]
	}
	if modified {
		revision += "-dirty"
	}
	return revision
}

// Info returns "VERSION (COMMIT)".
func Info() string {
	return fmt.Sprintf("%s (%s)", Version, Commit())
}

// Fprint writes the program name, version, and toolchain details.
func Fprint(w io.Writer, program string) {
	fmt.Fprintf(w, "%s %s\n  Go: %s\n  Platform: %s/%s\n",
		program, Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
