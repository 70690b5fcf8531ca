// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package decompress

import (
	"fmt"
	"sort"
)

// Code identifies the compression algorithm of a bucket. Codes are
// stored in every framed bucket record; changing a value breaks
// compatibility with existing files and streams.
type Code uint8

const (
	// CodeNone stores the serialized bucket as-is.
	CodeNone Code = 0

	// CodeLZ4 is LZ4 block compression. Fast to decode, moderate
	// ratio.
	CodeLZ4 Code = 1

	// CodeZstd is zstd at the default level. Best general-purpose
	// ratio.
	CodeZstd Code = 2

	// CodeGzip is a gzip member, for interchange with external tools.
	CodeGzip Code = 3

	// CodeS2 is the S2 block format (Snappy-compatible extension).
	CodeS2 Code = 4

	// CodeBrotli is a brotli stream.
	CodeBrotli Code = 5
)

var codeNames = map[Code]string{
	CodeNone:   "none",
	CodeLZ4:    "lz4",
	CodeZstd:   "zstd",
	CodeGzip:   "gzip",
	CodeS2:     "s2",
	CodeBrotli: "brotli",
}

// String returns the algorithm name of a code.
func (code Code) String() string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(code))
}

// ParseCode parses an algorithm name into its code.
func ParseCode(name string) (Code, error) {
	for code, candidate := range codeNames {
		if candidate == name {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown compression algorithm: %q", name)
}

// KnownNames returns the names of every built-in algorithm, sorted.
func KnownNames() []string {
	names := make([]string, 0, len(codeNames))
	for _, name := range codeNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
