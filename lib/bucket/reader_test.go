// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/eventflow/lib/codec"
	"github.com/bureau-foundation/eventflow/lib/contenthash"
	"github.com/bureau-foundation/eventflow/lib/decompress"
	"github.com/bureau-foundation/eventflow/lib/fault"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// makeEvents returns count distinct payloads prefixed with label.
func makeEvents(label string, count int) [][]byte {
	events := make([][]byte, count)
	for i := range events {
		events[i] = []byte(fmt.Sprintf("%s-event-%d", label, i))
	}
	return events
}

// writeBuckets frames buckets into a new file under dir and returns the
// path plus the content hash of each bucket in order.
func writeBuckets(t *testing.T, dir, name string, algorithm decompress.Code, width int, buckets ...*Bucket) (string, []contenthash.Hash) {
	t.Helper()
	var stream bytes.Buffer
	writer, err := NewWriter(&stream, WriterConfig{Algorithm: algorithm, PrefixWidth: width, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	hashes := make([]contenthash.Hash, 0, len(buckets))
	for _, b := range buckets {
		hash, err := writer.WriteBucket(b)
		if err != nil {
			t.Fatalf("WriteBucket: %v", err)
		}
		hashes = append(hashes, hash)
	}
	path := filepath.Join(dir, name)
	writeFile(t, path, stream.Bytes())
	return path, hashes
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// writeRawRecord frames a hand-built record into a file.
func writeRawRecord(t *testing.T, dir, name string, records ...*Deflated) string {
	t.Helper()
	var stream bytes.Buffer
	for _, record := range records {
		encoded, err := codec.Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if err := writeFrame(&stream, PrefixWidth32, encoded); err != nil {
			t.Fatalf("writeFrame: %v", err)
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, stream.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func newTestReader(t *testing.T, config ReaderConfig) *Reader {
	t.Helper()
	if config.Logger == nil {
		config.Logger = quietLogger()
	}
	reader, err := NewReader(config)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	return reader
}

// drain reads every event through Initialize and Next, copying payloads.
func drain(t *testing.T, reader *Reader) [][]byte {
	t.Helper()
	ctx := context.Background()
	var payloads [][]byte
	event, err := reader.Initialize(ctx)
	for err == nil {
		payloads = append(payloads, append([]byte(nil), event.Payload...))
		event, err = reader.Next(ctx)
	}
	if !errors.Is(err, io.EOF) {
		t.Fatalf("draining reader: %v", err)
	}
	return payloads
}

func TestReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	first := makeEvents("a", 5)
	second := makeEvents("b", 3)

	for _, name := range decompress.KnownNames() {
		for _, width := range []int{PrefixWidth32, PrefixWidth64} {
			t.Run(fmt.Sprintf("%s/%d", name, width), func(t *testing.T) {
				code, _ := decompress.ParseCode(name)
				path, _ := writeBuckets(t, dir, fmt.Sprintf("%s-%d.bkt", name, width), code, width,
					&Bucket{Events: first}, &Bucket{Events: second})

				reader := newTestReader(t, ReaderConfig{Sources: []string{path}, PrefixWidth: width})
				got := drain(t, reader)

				want := append(append([][]byte{}, first...), second...)
				if len(got) != len(want) {
					t.Fatalf("read %d events, want %d", len(got), len(want))
				}
				for i := range want {
					if !bytes.Equal(got[i], want[i]) {
						t.Errorf("event %d = %q, want %q", i, got[i], want[i])
					}
				}
				if reader.State() != StateExhausted {
					t.Errorf("State() = %s, want exhausted", reader.State())
				}
			})
		}
	}
}

func TestReaderMultiSourceContinuation(t *testing.T) {
	dir := t.TempDir()
	pathA, hashesA := writeBuckets(t, dir, "a.bkt", decompress.CodeZstd, 0,
		&Bucket{Events: makeEvents("a0", 2)}, &Bucket{Events: makeEvents("a1", 2)})
	pathB, hashesB := writeBuckets(t, dir, "b.bkt", decompress.CodeLZ4, 0,
		&Bucket{Events: makeEvents("b0", 2)})

	reader := newTestReader(t, ReaderConfig{Sources: []string{pathA, pathB}})
	ctx := context.Background()

	if _, err := reader.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	seen := []contenthash.Hash{reader.Hash()}
	sources := []string{reader.Source()}
	for {
		err := reader.NextBucket(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextBucket: %v", err)
		}
		if !reader.Good() {
			t.Fatal("Good() false after a successful NextBucket")
		}
		seen = append(seen, reader.Hash())
		sources = append(sources, reader.Source())
	}

	want := append(append([]contenthash.Hash{}, hashesA...), hashesB...)
	if len(seen) != 3 {
		t.Fatalf("saw %d buckets, want 3", len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("bucket %d hash = %s, want %s", i, seen[i].Short(), want[i].Short())
		}
	}
	if sources[0] != pathA || sources[1] != pathA || sources[2] != pathB {
		t.Errorf("sources = %v", sources)
	}
	if reader.Good() {
		t.Error("Good() should be false after exhaustion")
	}
	if stats := reader.Stats(); stats.Sources != 2 || stats.Buckets != 3 {
		t.Errorf("stats = %+v, want 2 sources and 3 buckets", stats)
	}
}

func TestReaderLazyDecompression(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "lazy.bkt", decompress.CodeZstd, 0,
		&Bucket{Events: makeEvents("x", 3)}, &Bucket{Events: makeEvents("y", 3)})

	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	ctx := context.Background()
	if _, err := reader.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if got := reader.Stats().Decompressions; got != 1 {
		t.Fatalf("Decompressions after Initialize = %d, want 1", got)
	}

	if err := reader.NextBucket(ctx); err != nil {
		t.Fatalf("NextBucket: %v", err)
	}
	if got := reader.Stats().Decompressions; got != 1 {
		t.Errorf("NextBucket decompressed eagerly: Decompressions = %d", got)
	}
	if reader.Deflated() == nil || reader.Deflated().Algorithm != decompress.CodeZstd {
		t.Error("Deflated() should expose the compressed record")
	}

	for i := 0; i < 3; i++ {
		if _, err := reader.Bucket(); err != nil {
			t.Fatalf("Bucket: %v", err)
		}
	}
	if got := reader.Stats().Decompressions; got != 2 {
		t.Errorf("Decompressions = %d, want 2 (cache-valid flag should short-circuit)", got)
	}
}

func TestReaderDedupCache(t *testing.T) {
	dir := t.TempDir()
	same := &Bucket{Events: makeEvents("dup", 4)}
	path, hashes := writeBuckets(t, dir, "dup.bkt", decompress.CodeGzip, 0,
		same, &Bucket{Events: makeEvents("other", 1)}, same)
	if hashes[0] != hashes[2] {
		t.Fatal("identical buckets produced different hashes")
	}

	reader := newTestReader(t, ReaderConfig{Sources: []string{path}, DedupCacheSize: 8})
	got := drain(t, reader)
	if len(got) != 9 {
		t.Fatalf("read %d events, want 9", len(got))
	}
	stats := reader.Stats()
	if stats.Decompressions != 2 || stats.DedupHits != 1 {
		t.Errorf("stats = %+v, want 2 decompressions and 1 dedup hit", stats)
	}
	if !bytes.Equal(got[8], same.Events[3]) {
		t.Errorf("cached bucket served %q", got[8])
	}
}

func TestReaderEventIsReused(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "reuse.bkt", decompress.CodeNone, 0, &Bucket{Events: makeEvents("r", 3)})

	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	ctx := context.Background()
	first, err := reader.Initialize(ctx)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	second, err := reader.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first != second {
		t.Error("reader should hand out the same Event instance on every pull")
	}
	if second.Index != 1 || string(second.Payload) != "r-event-1" {
		t.Errorf("event = %d %q", second.Index, second.Payload)
	}
	if second.Source != path || second.Bucket != reader.Hash() {
		t.Error("event source or bucket hash not filled in")
	}
}

func TestReaderMaxEvents(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "cap.bkt", decompress.CodeS2, 0,
		&Bucket{Events: makeEvents("c", 3)}, &Bucket{Events: makeEvents("d", 3)})

	reader := newTestReader(t, ReaderConfig{Sources: []string{path}, MaxEvents: 4})
	got := drain(t, reader)
	if len(got) != 4 {
		t.Fatalf("read %d events, want 4", len(got))
	}
	if reader.Good() {
		t.Error("Good() should be false once the cap is reached")
	}
}

func TestReaderUnbound(t *testing.T) {
	reader := newTestReader(t, ReaderConfig{})
	if reader.State() != StateUnbound {
		t.Fatalf("State() = %s, want unbound", reader.State())
	}
	if _, err := reader.Initialize(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Initialize without sources: err = %v, want io.EOF", err)
	}
}

func TestReaderStateViolations(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "state.bkt", decompress.CodeNone, 0, &Bucket{Events: makeEvents("s", 1)})
	ctx := context.Background()

	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Next(ctx); !fault.Is(err, fault.CategoryState) {
		t.Errorf("Next before Initialize: err = %v, want state error", err)
	}
	if err := reader.NextBucket(ctx); !fault.Is(err, fault.CategoryState) {
		t.Errorf("NextBucket before Initialize: err = %v, want state error", err)
	}
	if _, err := reader.Bucket(); !fault.Is(err, fault.CategoryState) {
		t.Errorf("Bucket before Initialize: err = %v, want state error", err)
	}

	if _, err := reader.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := reader.Initialize(ctx); !fault.Is(err, fault.CategoryState) {
		t.Errorf("second Initialize: err = %v, want state error", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := reader.Close(); !fault.Is(err, fault.CategoryState) {
		t.Errorf("second Close: err = %v, want state error", err)
	}
	if _, err := reader.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next after Close: err = %v, want io.EOF", err)
	}
}

func TestReaderSkipsEmptySourcePath(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "after-empty.bkt", decompress.CodeNone, 0, &Bucket{Events: makeEvents("e", 2)})

	var logs bytes.Buffer
	reader := newTestReader(t, ReaderConfig{
		Sources: []string{"", path},
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if got := drain(t, reader); len(got) != 2 {
		t.Errorf("read %d events, want 2", len(got))
	}
	if !strings.Contains(logs.String(), "empty source path") {
		t.Errorf("expected a warning for the empty path, got %q", logs.String())
	}
}

func TestReaderTruncatedSourceThenContinues(t *testing.T) {
	dir := t.TempDir()
	goodPath, _ := writeBuckets(t, dir, "whole.bkt", decompress.CodeZstd, 0,
		&Bucket{Events: makeEvents("w", 2)}, &Bucket{Events: makeEvents("v", 2)})
	data, err := os.ReadFile(goodPath)
	if err != nil {
		t.Fatalf("reading %s: %v", goodPath, err)
	}
	truncatedPath := filepath.Join(dir, "truncated.bkt")
	if err := os.WriteFile(truncatedPath, data[:len(data)-3], 0o644); err != nil {
		t.Fatalf("writing truncated file: %v", err)
	}
	nextPath, _ := writeBuckets(t, dir, "next.bkt", decompress.CodeNone, 0, &Bucket{Events: makeEvents("n", 1)})

	reader := newTestReader(t, ReaderConfig{Sources: []string{truncatedPath, nextPath}})
	ctx := context.Background()

	var payloads []string
	event, err := reader.Initialize(ctx)
	for err == nil {
		payloads = append(payloads, string(event.Payload))
		event, err = reader.Next(ctx)
	}
	if !fault.Is(err, fault.CategoryWireFormat) {
		t.Fatalf("err = %v, want wire-format error for the truncated frame", err)
	}
	if len(payloads) != 2 {
		t.Errorf("read %d events before the truncation, want 2", len(payloads))
	}
	if reader.Good() {
		t.Error("Good() should be false after a framing failure")
	}

	// The failed source is abandoned; the next call moves on.
	event, err = reader.Next(ctx)
	if err != nil {
		t.Fatalf("Next after failure: %v", err)
	}
	if string(event.Payload) != "n-event-0" || event.Source != nextPath {
		t.Errorf("event = %q from %s", event.Payload, event.Source)
	}
}

func TestReaderUnknownAlgorithm(t *testing.T) {
	dir := t.TempDir()
	path := writeRawRecord(t, dir, "unknown.bkt", &Deflated{
		Algorithm:    decompress.Code(99),
		OriginalSize: 8,
		Payload:      []byte("whatever"),
	})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Initialize(context.Background()); !fault.Is(err, fault.CategoryNotFound) {
		t.Errorf("err = %v, want not-found error", err)
	}
}

func TestReaderUnparseableBucket(t *testing.T) {
	dir := t.TempDir()
	path := writeRawRecord(t, dir, "garbage.bkt", &Deflated{
		Algorithm:    decompress.CodeNone,
		OriginalSize: 4,
		Payload:      []byte{0xff, 0xfe, 0xfd, 0xfc},
	})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Initialize(context.Background()); !fault.Is(err, fault.CategoryWireFormat) {
		t.Errorf("err = %v, want wire-format error", err)
	}
}

func TestReaderUnparseableRecord(t *testing.T) {
	dir := t.TempDir()
	var stream bytes.Buffer
	if err := writeFrame(&stream, PrefixWidth32, []byte{0xff, 0x00}); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	path := filepath.Join(dir, "record.bkt")
	if err := os.WriteFile(path, stream.Bytes(), 0o644); err != nil {
		t.Fatalf("writing: %v", err)
	}
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Initialize(context.Background()); !fault.Is(err, fault.CategoryWireFormat) {
		t.Errorf("err = %v, want wire-format error", err)
	}
}

func TestReaderEmptyPayloadContinues(t *testing.T) {
	dir := t.TempDir()
	events := makeEvents("after", 2)
	raw, err := Encode(&Bucket{Events: events})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := writeRawRecord(t, dir, "empty.bkt",
		&Deflated{Algorithm: decompress.CodeNone, OriginalSize: 16},
		&Deflated{
			Algorithm:    decompress.CodeNone,
			OriginalSize: uint64(len(raw)),
			Hash:         contenthash.Sum(raw),
			Payload:      raw,
		})

	var logs bytes.Buffer
	reader := newTestReader(t, ReaderConfig{
		Sources: []string{path},
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})
	got := drain(t, reader)
	if !strings.Contains(logs.String(), "empty compressed payload") {
		t.Errorf("expected an empty-payload warning, got %q", logs.String())
	}
	if len(got) != len(events) {
		t.Fatalf("read %d events, want %d from the bucket after the empty one", len(got), len(events))
	}
	for i := range events {
		if !bytes.Equal(got[i], events[i]) {
			t.Errorf("event %d = %q, want %q", i, got[i], events[i])
		}
	}
	if stats := reader.Stats(); stats.Buckets != 2 || stats.Decompressions != 1 {
		t.Errorf("stats = %+v, want 2 buckets and 1 decompression", stats)
	}
}

func TestReaderEmptyPayloadBucketIsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := writeRawRecord(t, dir, "only-empty.bkt", &Deflated{Algorithm: decompress.CodeZstd})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Initialize(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Initialize: err = %v, want io.EOF", err)
	}
	if reader.Stats().Buckets != 1 {
		t.Errorf("buckets = %d, want 1", reader.Stats().Buckets)
	}
}

func TestReaderRecordWithoutHash(t *testing.T) {
	dir := t.TempDir()
	raw, err := Encode(&Bucket{Events: makeEvents("h", 2)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	path := writeRawRecord(t, dir, "nohash.bkt", &Deflated{
		Algorithm:    decompress.CodeNone,
		OriginalSize: uint64(len(raw)),
		Payload:      raw,
	})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if reader.Hash() != contenthash.Sum(raw) {
		t.Error("reader should derive a hash for records without one")
	}
}

func TestReaderDerivedHashCoversPayload(t *testing.T) {
	dir := t.TempDir()
	raw, err := Encode(&Bucket{Events: makeEvents("k", 4)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	registry := decompress.NewDefaultRegistry(decompress.Options{AutoConstruct: true, Logger: quietLogger()})
	payload, err := registry.Compress(decompress.CodeGzip, raw)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	path := writeRawRecord(t, dir, "derived.bkt", &Deflated{
		Algorithm:    decompress.CodeGzip,
		OriginalSize: uint64(len(raw)),
		Payload:      payload,
	})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	if _, err := reader.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if reader.Hash() != contenthash.Sum(payload) {
		t.Errorf("derived hash %s, want the hash of the compressed payload", reader.Hash().Short())
	}
	if reader.Hash() == contenthash.Sum(raw) {
		t.Error("derived hash must not collide with the writer's hash of the serialized bucket")
	}
}

func TestReaderMissingFile(t *testing.T) {
	reader := newTestReader(t, ReaderConfig{Sources: []string{filepath.Join(t.TempDir(), "absent.bkt")}})
	if _, err := reader.Initialize(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

// memoryNetwork is a NetworkSource returning a fixed buffer.
type memoryNetwork struct {
	data  []byte
	calls int
}

func (m *memoryNetwork) Receive(ctx context.Context) ([]byte, error) {
	m.calls++
	return m.data, nil
}

func TestReaderNetworkSource(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "net.bkt", decompress.CodeBrotli, 0, &Bucket{Events: makeEvents("net", 3)})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading: %v", err)
	}
	filePath, _ := writeBuckets(t, dir, "file.bkt", decompress.CodeNone, 0, &Bucket{Events: makeEvents("file", 1)})

	network := &memoryNetwork{data: data}
	reader := newTestReader(t, ReaderConfig{Sources: []string{NetworkToken, filePath}, Network: network})
	got := drain(t, reader)
	if len(got) != 4 {
		t.Fatalf("read %d events, want 4", len(got))
	}
	if string(got[0]) != "net-event-0" || string(got[3]) != "file-event-0" {
		t.Errorf("events = %q", got)
	}
	if network.calls != 1 {
		t.Errorf("Receive called %d times, want 1", network.calls)
	}
}

func TestReaderNetworkSourceNotConfigured(t *testing.T) {
	reader := newTestReader(t, ReaderConfig{Sources: []string{NetworkToken}})
	if _, err := reader.Initialize(context.Background()); !fault.Is(err, fault.CategoryState) {
		t.Errorf("err = %v, want state error", err)
	}
}

func TestReaderSkipsEmptyBuckets(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "empty-bucket.bkt", decompress.CodeZstd, 0,
		&Bucket{}, &Bucket{Events: makeEvents("after", 1)})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	got := drain(t, reader)
	if len(got) != 1 || string(got[0]) != "after-event-0" {
		t.Errorf("events = %q", got)
	}
}

func TestNewReaderValidation(t *testing.T) {
	if _, err := NewReader(ReaderConfig{PrefixWidth: 2}); err == nil {
		t.Error("NewReader should reject prefix width 2")
	}
	if _, err := NewReader(ReaderConfig{MaxEvents: -1}); err == nil {
		t.Error("NewReader should reject a negative event cap")
	}
}

func TestEventSource(t *testing.T) {
	dir := t.TempDir()
	path, _ := writeBuckets(t, dir, "source.bkt", decompress.CodeLZ4, 0, &Bucket{Events: makeEvents("src", 2)})
	reader := newTestReader(t, ReaderConfig{Sources: []string{path}})
	source := NewEventSource(reader)
	ctx := context.Background()

	count := 0
	for {
		_, err := source.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Errorf("pulled %d events, want 2", count)
	}
	if source.Reader() != reader {
		t.Error("Reader() should return the wrapped reader")
	}
}
