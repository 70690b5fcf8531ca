// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package contenthash provides the fixed-width digest used to
// deduplicate and cache buckets by content.
//
// A [Hash] is a BLAKE3 keyed hash under a bucket-specific domain key.
// Writers compute it over the uncompressed serialized bucket with [Sum]
// and record it in the wire record, so readers key their caches on it
// without recomputing. Because Hash is a [32]byte array it is a valid
// Go map key with bytewise equality. [Hash.Mix] derives seeded 32-bit
// values for shard selection.
package contenthash
