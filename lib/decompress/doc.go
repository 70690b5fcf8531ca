// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package decompress maps bucket compression codes to decompression
// strategies.
//
// A [Registry] holds named constructors keyed by [Code] and memoizes
// the instance each constructor builds, so a strategy is created once
// and reused for every bucket. Six algorithms are built in (none, lz4,
// zstd, gzip, s2, brotli); [NewDefaultRegistry] registers all of them.
//
// Decompression is bounded by the original size announced in the
// bucket record: [Registry.Decompress] reserves exactly that many
// bytes, lets the strategy fill them, and truncates to the length
// reported. Output beyond the bound is a wire-format error. An empty
// result for non-empty input is only a warning.
//
// Failures are categorized with lib/fault: unknown codes are
// [fault.CategoryNotFound], corrupt or oversized payloads are
// [fault.CategoryWireFormat].
package decompress
