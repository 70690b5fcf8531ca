// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"github.com/bureau-foundation/eventflow/lib/codec"
	"github.com/bureau-foundation/eventflow/lib/contenthash"
	"github.com/bureau-foundation/eventflow/lib/decompress"
	"github.com/bureau-foundation/eventflow/lib/fault"
)

// Bucket is a batch of opaque event payloads plus an optional
// supplementary table. It is the unit of compression and transfer.
type Bucket struct {
	// Events holds the event payloads in stream order.
	Events [][]byte `cbor:"1,keyasint"`

	// Info maps a collector name to per-event entries, index-aligned
	// with Events. A list shorter than Events leaves the trailing
	// events without an entry; a nil entry means "no entry" too.
	Info map[string][][]byte `cbor:"2,keyasint,omitempty"`
}

// Count returns the number of events in the bucket.
func (b *Bucket) Count() int {
	return len(b.Events)
}

// Entry returns the supplementary entry for the event at index under
// the named table, or nil.
func (b *Bucket) Entry(name string, index int) []byte {
	entries := b.Info[name]
	if index < 0 || index >= len(entries) {
		return nil
	}
	return entries[index]
}

// Deflated is the framed wire record of a bucket: the compressed
// serialized Bucket plus what a reader needs to restore it.
type Deflated struct {
	// Algorithm is the compression code of Payload.
	Algorithm decompress.Code `cbor:"1,keyasint"`

	// OriginalSize is the length of the serialized Bucket before
	// compression. Readers treat it as an upper bound.
	OriginalSize uint64 `cbor:"2,keyasint"`

	// Hash is the content hash of the serialized Bucket. The zero hash
	// means the writer recorded none.
	Hash contenthash.Hash `cbor:"3,keyasint"`

	// Payload is the compressed serialized Bucket.
	Payload []byte `cbor:"4,keyasint"`
}

// Encode serializes a bucket with deterministic CBOR. Identical buckets
// encode to identical bytes.
func Encode(b *Bucket) ([]byte, error) {
	return codec.Marshal(b)
}

// Decode parses serialized bucket bytes. Any parse failure, and a
// supplementary table longer than the event list, is a wire-format
// error.
func Decode(data []byte) (*Bucket, error) {
	var decoded Bucket
	if err := codec.Unmarshal(data, &decoded); err != nil {
		return nil, fault.WireFormat("parsing bucket (%d bytes): %w", len(data), err)
	}
	for name, entries := range decoded.Info {
		if len(entries) > len(decoded.Events) {
			return nil, fault.WireFormat("supplementary table %q has %d entries for %d events",
				name, len(entries), len(decoded.Events))
		}
	}
	return &decoded, nil
}

// decodeRecord parses one framed record.
func decodeRecord(data []byte) (*Deflated, error) {
	var record Deflated
	if err := codec.Unmarshal(data, &record); err != nil {
		return nil, fault.WireFormat("parsing bucket record (%d bytes): %w", len(data), err)
	}
	return &record, nil
}

// Event is one event as handed out by a Reader. The Reader owns a
// single Event and overwrites it on every pull; callers that keep an
// event past the next pull must copy Payload.
type Event struct {
	// Index is the event's position within its bucket.
	Index int

	// Payload is the opaque event bytes. Its backing array is reused
	// across pulls.
	Payload []byte

	// Bucket is the content hash of the bucket the event came from.
	Bucket contenthash.Hash

	// Source is the source identifier (path or network token).
	Source string
}
