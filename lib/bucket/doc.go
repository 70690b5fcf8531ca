// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bucket reads and writes framed, compressed batches of opaque
// events.
//
// A [Bucket] is an ordered list of event payloads plus an optional
// supplementary table keyed by collector name. On the wire each bucket
// travels as a [Deflated] record (algorithm code, announced original
// size, content hash, compressed payload) encoded as deterministic CBOR
// and preceded by a 4- or 8-byte little-endian length:
//
//	[length][record] [length][record] ... EOF
//
// [Writer] produces that stream. [Reader] consumes an ordered list of
// sources (file paths or [NetworkToken] for one inbound connection),
// moving to the next source when one ends. It decompresses lazily: the
// decoded view is built on the first [Reader.Bucket] or [Reader.Next]
// after a bucket switch and reused until the next switch. With a dedup
// cache configured, buckets whose content hash was already decoded are
// served from the cache.
//
// Events are pulled one at a time with [Reader.Initialize] followed by
// [Reader.Next]. The reader reuses a single [Event] and its payload
// buffer across pulls. [EventSource] adapts a reader to the pipeline
// source contract.
//
// Supplementary collectors are constructed by name from a
// [CollectorRegistry], cached by the reader, reset on every bucket
// switch, and fed each event's entry as it is pulled.
//
// Failures carry lib/fault categories: framing and parse errors are
// wire-format errors, unknown algorithms and collector names are
// not-found errors, and calling methods out of order is a state error.
package bucket
