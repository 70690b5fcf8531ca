// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/bureau-foundation/eventflow/lib/codec"
	"github.com/bureau-foundation/eventflow/lib/contenthash"
	"github.com/bureau-foundation/eventflow/lib/decompress"
)

// WriterConfig configures a Writer.
type WriterConfig struct {
	// Algorithm is the compression code for every bucket written.
	Algorithm decompress.Code

	// Decompressors supplies the compression strategies. Nil means a
	// default registry with auto-construction.
	Decompressors *decompress.Registry

	// PrefixWidth is the frame length width, 4 or 8. Zero means 4.
	PrefixWidth int

	// Logger receives debug output. Nil means slog.Default().
	Logger *slog.Logger
}

// Writer frames buckets onto a byte stream in the format Reader
// consumes: [length][CBOR Deflated record], repeated.
type Writer struct {
	destination   io.Writer
	algorithm     decompress.Code
	decompressors *decompress.Registry
	prefixWidth   int
	logger        *slog.Logger

	buckets int
	events  int
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer, config WriterConfig) (*Writer, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := config.Decompressors
	if registry == nil {
		registry = decompress.NewDefaultRegistry(decompress.Options{AutoConstruct: true, Logger: logger})
	}
	width := config.PrefixWidth
	if width == 0 {
		width = PrefixWidth32
	}
	if !ValidPrefixWidth(width) {
		return nil, fmt.Errorf("unsupported prefix width %d (want 4 or 8)", width)
	}
	if _, err := registry.Lookup(config.Algorithm); err != nil {
		return nil, fmt.Errorf("writer algorithm %s: %w", config.Algorithm, err)
	}
	return &Writer{
		destination:   w,
		algorithm:     config.Algorithm,
		decompressors: registry,
		prefixWidth:   width,
		logger:        logger,
	}, nil
}

// WriteBucket serializes, hashes, compresses and frames one bucket,
// returning its content hash. Data the configured algorithm cannot
// represent is stored uncompressed.
func (w *Writer) WriteBucket(b *Bucket) (contenthash.Hash, error) {
	raw, err := Encode(b)
	if err != nil {
		return contenthash.Hash{}, fmt.Errorf("encoding bucket: %w", err)
	}
	hash := contenthash.Sum(raw)

	algorithm := w.algorithm
	payload, err := w.decompressors.Compress(algorithm, raw)
	if errors.Is(err, decompress.ErrIncompressible) {
		algorithm = decompress.CodeNone
		payload = raw
	} else if err != nil {
		return contenthash.Hash{}, fmt.Errorf("compressing bucket with %s: %w", algorithm, err)
	}

	record, err := codec.Marshal(&Deflated{
		Algorithm:    algorithm,
		OriginalSize: uint64(len(raw)),
		Hash:         hash,
		Payload:      payload,
	})
	if err != nil {
		return contenthash.Hash{}, fmt.Errorf("encoding bucket record: %w", err)
	}
	if err := writeFrame(w.destination, w.prefixWidth, record); err != nil {
		return contenthash.Hash{}, err
	}

	w.buckets++
	w.events += b.Count()
	w.logger.Debug("bucket written",
		"bucket", hash.Short(),
		"algorithm", algorithm.String(),
		"events", b.Count(),
		"original_bytes", len(raw),
		"compressed_bytes", len(payload),
	)
	return hash, nil
}

// WriteEvents writes a bucket holding events and no supplementary
// table.
func (w *Writer) WriteEvents(events [][]byte) (contenthash.Hash, error) {
	return w.WriteBucket(&Bucket{Events: events})
}

// WriteBatches splits events into buckets of at most perBucket events
// and writes them in order.
func (w *Writer) WriteBatches(events [][]byte, perBucket int) ([]contenthash.Hash, error) {
	if perBucket <= 0 {
		return nil, fmt.Errorf("events per bucket must be positive, got %d", perBucket)
	}
	var hashes []contenthash.Hash
	for start := 0; start < len(events); start += perBucket {
		end := min(start+perBucket, len(events))
		hash, err := w.WriteEvents(events[start:end])
		if err != nil {
			return hashes, fmt.Errorf("writing bucket %d: %w", len(hashes), err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, nil
}

// Buckets returns the number of buckets written.
func (w *Writer) Buckets() int { return w.buckets }

// Events returns the number of events written.
func (w *Writer) Events() int { return w.events }
