// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration for
// bucket records.
//
// Both the framed wire record (algorithm, original size, content hash,
// payload) and the decompressed bucket body (events plus supplementary
// table) are CBOR. The encoder uses Core Deterministic Encoding (RFC
// 8949 §4.2) so that logically identical buckets produce identical
// bytes and therefore identical content hashes.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized here use `cbor` struct tags with integer keys
// (keyasint) to keep per-record overhead small.
package codec
