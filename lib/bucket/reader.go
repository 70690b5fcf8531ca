// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bureau-foundation/eventflow/lib/contenthash"
	"github.com/bureau-foundation/eventflow/lib/decompress"
	"github.com/bureau-foundation/eventflow/lib/fault"
)

// NetworkToken is the source identifier meaning "accept one inbound
// connection and read its bytes".
const NetworkToken = "@net"

// maxOriginalSize bounds the announced uncompressed size of a bucket.
const maxOriginalSize = 1 << 30

// fileBufferSize is the read buffer for file-backed sources.
const fileBufferSize = 64 << 10

// NetworkSource delivers the complete byte stream of one inbound
// connection. Ownership of the returned buffer passes to the caller.
type NetworkSource interface {
	Receive(ctx context.Context) ([]byte, error)
}

// State is the lifecycle position of a Reader.
type State int

const (
	// StateUnbound: no sources configured.
	StateUnbound State = iota

	// StateReady: sources configured, Initialize not yet called.
	StateReady

	// StateStreaming: a bucket is (or was last) active.
	StateStreaming

	// StateExhausted: all sources consumed, the event cap reached, or
	// the reader closed. Terminal.
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	// Sources is the ordered list of file paths or NetworkToken.
	Sources []string

	// Decompressors resolves algorithm codes. Nil means a default
	// registry with auto-construction.
	Decompressors *decompress.Registry

	// Collectors resolves collector names. Nil means the default
	// registry.
	Collectors *CollectorRegistry

	// Network serves NetworkToken sources. Required only if a source
	// is the token.
	Network NetworkSource

	// MaxEvents caps the events returned. Zero means no cap.
	MaxEvents int

	// PrefixWidth is the frame length width, 4 or 8. Zero means 4.
	PrefixWidth int

	// DedupCacheSize is the number of decoded buckets cached by
	// content hash. Zero disables the cache.
	DedupCacheSize int

	// Logger receives warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// ReaderStats counts reader activity.
type ReaderStats struct {
	Sources        int
	Buckets        int
	Events         int
	Decompressions int
	DedupHits      int
}

// Reader pulls events out of framed bucket streams. It owns its active
// stream, the current compressed bucket, the decoded view of it, the
// collector cache, and a single reused Event. A Reader is not safe for
// concurrent use.
type Reader struct {
	sources       []string
	decompressors *decompress.Registry
	collectors    *CollectorRegistry
	network       NetworkSource
	maxEvents     int
	prefixWidth   int
	logger        *slog.Logger
	cache         *dedupCache

	state       State
	sourceIndex int
	source      string
	stream      io.Reader
	closer      io.Closer
	frame       []byte

	// deflated is the current compressed bucket; nil when none is
	// active. good tracks whether the last acquisition succeeded.
	deflated *Deflated
	hash     contenthash.Hash
	good     bool

	// decoded is the cache-valid flag for bucket: false whenever a
	// new compressed bucket is set, true once decompression and parse
	// succeed.
	bucket  *Bucket
	decoded bool

	cursor int
	event  Event
	capped bool
	closed bool

	collectorCache map[string]Collector
	stats          ReaderStats
}

// NewReader creates a Reader. The reader is StateReady when sources are
// configured and StateUnbound otherwise.
func NewReader(config ReaderConfig) (*Reader, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	width := config.PrefixWidth
	if width == 0 {
		width = PrefixWidth32
	}
	if !ValidPrefixWidth(width) {
		return nil, fmt.Errorf("unsupported prefix width %d (want 4 or 8)", width)
	}
	if config.MaxEvents < 0 {
		return nil, fmt.Errorf("max events must not be negative, got %d", config.MaxEvents)
	}
	decompressors := config.Decompressors
	if decompressors == nil {
		decompressors = decompress.NewDefaultRegistry(decompress.Options{AutoConstruct: true, Logger: logger})
	}
	collectors := config.Collectors
	if collectors == nil {
		collectors = NewDefaultCollectorRegistry()
	}
	cache, err := newDedupCache(config.DedupCacheSize)
	if err != nil {
		return nil, err
	}

	state := StateUnbound
	if len(config.Sources) > 0 {
		state = StateReady
	}
	return &Reader{
		sources:        append([]string(nil), config.Sources...),
		decompressors:  decompressors,
		collectors:     collectors,
		network:        config.Network,
		maxEvents:      config.MaxEvents,
		prefixWidth:    width,
		logger:         logger,
		cache:          cache,
		state:          state,
		collectorCache: make(map[string]Collector),
	}, nil
}

// Initialize binds the first source, primes the first bucket, and
// returns the first event. It returns io.EOF when no event is
// available. Calling it more than once is a state error.
func (r *Reader) Initialize(ctx context.Context) (*Event, error) {
	switch r.state {
	case StateUnbound:
		r.state = StateExhausted
		return nil, io.EOF
	case StateReady:
	default:
		return nil, fault.State("reader already initialized (state %s)", r.state)
	}
	r.state = StateStreaming
	if err := r.nextBucket(ctx); err != nil {
		return nil, err
	}
	return r.Next(ctx)
}

// Good reports whether the last bucket acquisition succeeded and the
// event cap has not been reached. The current bucket is valid exactly
// while Good is true.
func (r *Reader) Good() bool {
	return r.good && !r.capped && r.state == StateStreaming
}

// State returns the reader's lifecycle state.
func (r *Reader) State() State { return r.state }

// NextBucket advances to the next framed bucket, moving on to the next
// source when the active one ends. It returns io.EOF once every source
// is consumed.
func (r *Reader) NextBucket(ctx context.Context) error {
	switch r.state {
	case StateUnbound, StateReady:
		return fault.State("NextBucket called before Initialize")
	case StateExhausted:
		return io.EOF
	}
	return r.nextBucket(ctx)
}

// nextBucket reads the next record. A wire-format or I/O failure closes
// the active source; the following call continues with the next one.
func (r *Reader) nextBucket(ctx context.Context) error {
	r.good = false
	r.deflated = nil
	r.bucket = nil
	r.decoded = false
	r.cursor = 0

	for {
		if r.stream == nil {
			if r.sourceIndex >= len(r.sources) {
				r.exhaust()
				return io.EOF
			}
			if err := r.openNext(ctx); err != nil {
				if fault.Is(err, fault.CategoryTransient) {
					r.logger.Warn("skipping source", "error", err)
					continue
				}
				return err
			}
		}

		frame, err := readFrame(r.stream, r.prefixWidth, r.frame)
		r.frame = frame
		if errors.Is(err, io.EOF) {
			r.logger.Debug("source exhausted", "source", r.source)
			r.closeSource()
			continue
		}
		if err != nil {
			source := r.source
			r.closeSource()
			return fmt.Errorf("reading bucket from %s: %w", source, err)
		}

		record, err := decodeRecord(frame)
		if err != nil {
			source := r.source
			r.closeSource()
			return fmt.Errorf("reading bucket from %s: %w", source, err)
		}
		r.setDeflated(record)
		return nil
	}
}

// setDeflated installs a new compressed bucket and invalidates
// everything derived from the previous one.
func (r *Reader) setDeflated(record *Deflated) {
	r.deflated = record
	r.hash = record.Hash
	if r.hash.IsZero() {
		// Writers that record no hash get one derived once from the
		// compressed payload. Such keys only match other hashless
		// records with the same payload bytes.
		r.hash = contenthash.Sum(record.Payload)
	}
	r.bucket = nil
	r.decoded = false
	r.cursor = 0
	r.good = true
	r.stats.Buckets++

	for _, collector := range r.collectorCache {
		collector.Reset(nil)
	}

	if len(record.Payload) == 0 {
		r.logger.Warn("bucket has an empty compressed payload",
			"source", r.source,
			"bucket", r.hash.Short(),
		)
	}
}

// Bucket returns the decoded view of the current bucket, decompressing
// and parsing it on the first call after each bucket switch.
func (r *Reader) Bucket() (*Bucket, error) {
	if r.deflated == nil || !r.good {
		return nil, fault.State("no current bucket (state %s)", r.state)
	}
	if r.decoded {
		return r.bucket, nil
	}

	decoded, err := r.decode()
	if err != nil {
		source := r.source
		r.good = false
		r.deflated = nil
		r.closeSource()
		return nil, fmt.Errorf("decoding bucket %s from %s: %w", r.hash.Short(), source, err)
	}
	r.bucket = decoded
	r.decoded = true

	for name, collector := range r.collectorCache {
		collector.Reset(decoded.Info[name])
	}
	return decoded, nil
}

func (r *Reader) decode() (*Bucket, error) {
	if len(r.deflated.Payload) == 0 {
		// Already warned about in setDeflated; the bucket holds no
		// events and the stream continues.
		return &Bucket{}, nil
	}
	if cached, ok := r.cache.get(r.hash); ok {
		r.stats.DedupHits++
		return cached, nil
	}
	if r.deflated.OriginalSize > maxOriginalSize {
		return nil, fault.WireFormat("announced size %d exceeds maximum %d", r.deflated.OriginalSize, maxOriginalSize)
	}
	raw, err := r.decompressors.Decompress(r.deflated.Algorithm, r.deflated.Payload, int(r.deflated.OriginalSize))
	if err != nil {
		return nil, err
	}
	r.stats.Decompressions++
	decoded, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	r.cache.add(r.hash, decoded)
	return decoded, nil
}

// Next returns the next event, crossing bucket and source boundaries as
// needed. The returned Event is owned by the reader and overwritten by
// the next call. Next returns io.EOF at the end of the stream or once
// the event cap is reached.
func (r *Reader) Next(ctx context.Context) (*Event, error) {
	switch r.state {
	case StateUnbound, StateReady:
		return nil, fault.State("Next called before Initialize")
	case StateExhausted:
		return nil, io.EOF
	}
	if r.maxEvents > 0 && r.stats.Events >= r.maxEvents {
		r.capped = true
		r.exhaust()
		return nil, io.EOF
	}

	for {
		if r.deflated != nil && r.good {
			decoded, err := r.Bucket()
			if err != nil {
				return nil, err
			}
			if r.cursor < len(decoded.Events) {
				return r.emit(decoded)
			}
		}
		if err := r.nextBucket(ctx); err != nil {
			return nil, err
		}
	}
}

// emit fills the reused Event from the cursor position and feeds every
// cached collector.
func (r *Reader) emit(decoded *Bucket) (*Event, error) {
	index := r.cursor
	r.event.Index = index
	r.event.Payload = append(r.event.Payload[:0], decoded.Events[index]...)
	r.event.Bucket = r.hash
	r.event.Source = r.source
	r.cursor++
	r.stats.Events++

	for name, collector := range r.collectorCache {
		if err := collector.Observe(index, decoded.Entry(name, index)); err != nil {
			return nil, fmt.Errorf("collector %q at event %d: %w", name, index, err)
		}
	}
	return &r.event, nil
}

// Collector returns the named collector, constructing it on first
// request and binding it to the current bucket.
func (r *Reader) Collector(name string) (Collector, error) {
	if collector, ok := r.collectorCache[name]; ok {
		return collector, nil
	}
	collector, err := r.collectors.New(name)
	if err != nil {
		return nil, err
	}
	r.collectorCache[name] = collector

	collector.Reset(nil)
	if r.decoded && r.bucket != nil {
		collector.Reset(r.bucket.Info[name])
	}
	return collector, nil
}

// Deflated returns the current compressed bucket record, or nil.
func (r *Reader) Deflated() *Deflated {
	if !r.good {
		return nil
	}
	return r.deflated
}

// Hash returns the content hash of the current bucket.
func (r *Reader) Hash() contenthash.Hash { return r.hash }

// Source returns the identifier of the active source.
func (r *Reader) Source() string { return r.source }

// Stats returns activity counters.
func (r *Reader) Stats() ReaderStats { return r.stats }

// CachedBuckets returns the number of decoded buckets held in the
// dedup cache.
func (r *Reader) CachedBuckets() int { return r.cache.len() }

// Close releases the active source and makes the reader terminal.
// Closing twice is a state error.
func (r *Reader) Close() error {
	if r.closed {
		return fault.State("reader closed twice")
	}
	r.closed = true
	err := r.closeSource()
	r.exhaust()
	return err
}

// openNext opens sources[sourceIndex] and advances the index.
func (r *Reader) openNext(ctx context.Context) error {
	path := r.sources[r.sourceIndex]
	r.sourceIndex++

	switch path {
	case "":
		return fault.Transient("empty source path at position %d", r.sourceIndex-1)

	case NetworkToken:
		if r.network == nil {
			return fault.State("source %s requires a network receiver", NetworkToken)
		}
		data, err := r.network.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receiving network source: %w", err)
		}
		r.stream = bytes.NewReader(data)
		r.closer = nil
		r.logger.Info("network source received", "bytes", len(data))

	default:
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening source: %w", err)
		}
		r.stream = bufio.NewReaderSize(file, fileBufferSize)
		r.closer = file
	}

	r.source = path
	r.stats.Sources++
	r.logger.Debug("source opened", "source", path, "position", r.sourceIndex-1)
	return nil
}

func (r *Reader) closeSource() error {
	var err error
	if r.closer != nil {
		err = r.closer.Close()
	}
	r.stream = nil
	r.closer = nil
	return err
}

func (r *Reader) exhaust() {
	r.good = false
	r.deflated = nil
	r.bucket = nil
	r.decoded = false
	r.closeSource()
	r.state = StateExhausted
}
