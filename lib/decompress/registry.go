// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package decompress

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

// Decompressor is a stateless decompression strategy. Implementations
// must be safe for concurrent use.
type Decompressor interface {
	// Code returns the algorithm code this strategy handles.
	Code() Code

	// Decompress fills dst with the decompressed form of src and
	// returns the number of bytes written. len(dst) is the announced
	// original size and acts as an upper bound: output that would
	// exceed it is a wire-format error, never a silent truncation.
	Decompress(src, dst []byte) (int, error)
}

// Compressor is the writer-side counterpart of a Decompressor.
type Compressor interface {
	// Compress returns the compressed form of src. It returns
	// ErrIncompressible when the algorithm cannot encode src more
	// compactly and has no expanding representation.
	Compress(src []byte) ([]byte, error)
}

// Codec is a strategy that can both compress and decompress.
type Codec interface {
	Decompressor
	Compressor
}

// Constructor builds a Codec. Constructors run at most once per
// registry; the result is memoized.
type Constructor func() (Codec, error)

// ErrIncompressible is returned by Compress when the algorithm cannot
// represent the input. Writers fall back to CodeNone.
var ErrIncompressible = errors.New("data is incompressible")

type namedConstructor struct {
	name        string
	constructor Constructor
}

// Registry maps algorithm codes to Codec instances. Constructors are
// registered by code and name at startup; instances are built on first
// use (when AutoConstruct is set) or eagerly with Preload, and reused
// for every later bucket.
//
// A Registry is an owned object, not a process-wide table: each
// composition root (the CLI, each test) builds its own.
type Registry struct {
	logger        *slog.Logger
	autoConstruct bool

	mu           sync.Mutex
	constructors map[Code]namedConstructor
	instances    map[Code]Codec
}

// Options configures a Registry.
type Options struct {
	// AutoConstruct lets Lookup build a missing instance from its
	// registered constructor. Without it, only preloaded codes
	// resolve.
	AutoConstruct bool

	// Logger receives non-fatal warnings. Nil means slog.Default().
	Logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(options Options) *Registry {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:        logger,
		autoConstruct: options.AutoConstruct,
		constructors:  make(map[Code]namedConstructor),
		instances:     make(map[Code]Codec),
	}
}

// NewDefaultRegistry creates a registry with every built-in algorithm
// registered.
func NewDefaultRegistry(options Options) *Registry {
	registry := NewRegistry(options)
	registry.Register(CodeNone, CodeNone.String(), newNone)
	registry.Register(CodeLZ4, CodeLZ4.String(), newLZ4)
	registry.Register(CodeZstd, CodeZstd.String(), newZstd)
	registry.Register(CodeGzip, CodeGzip.String(), newGzip)
	registry.Register(CodeS2, CodeS2.String(), newS2)
	registry.Register(CodeBrotli, CodeBrotli.String(), newBrotli)
	return registry
}

// Register adds a named constructor for code. Panics if the code is
// already registered; registration happens at startup, so a duplicate
// is a programming error.
func (r *Registry) Register(code Code, name string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.constructors[code]; exists {
		panic(fmt.Sprintf("decompress.Registry: code %d already registered as %q", code, existing.name))
	}
	r.constructors[code] = namedConstructor{name: name, constructor: constructor}
}

// Preload constructs and memoizes the instances for codes, regardless
// of AutoConstruct. With no arguments it preloads every registered
// code.
func (r *Registry) Preload(codes ...Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(codes) == 0 {
		for code := range r.constructors {
			codes = append(codes, code)
		}
	}
	for _, code := range codes {
		if _, err := r.constructLocked(code); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the memoized Codec for code, constructing it first
// if AutoConstruct is set. Unknown codes fail with a not-found error.
func (r *Registry) Lookup(code Code) (Codec, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, ok := r.instances[code]; ok {
		return instance, nil
	}
	if !r.autoConstruct {
		return nil, fault.NotFound("no decompressor loaded for algorithm code %d (%s)", uint8(code), code)
	}
	return r.constructLocked(code)
}

// constructLocked builds and memoizes the instance for code. Must be
// called with r.mu held.
func (r *Registry) constructLocked(code Code) (Codec, error) {
	if instance, ok := r.instances[code]; ok {
		return instance, nil
	}
	entry, ok := r.constructors[code]
	if !ok {
		return nil, fault.NotFound("no decompressor registered for algorithm code %d", uint8(code))
	}
	instance, err := entry.constructor()
	if err != nil {
		return nil, fmt.Errorf("constructing %s decompressor: %w", entry.name, err)
	}
	if instance == nil || instance.Code() != code {
		return nil, fault.NotFound("constructor %q did not produce a decompressor for code %d", entry.name, uint8(code))
	}
	r.instances[code] = instance
	r.logger.Debug("decompressor constructed", "algorithm", entry.name)
	return instance, nil
}

// Decompress decompresses src with the strategy for code into a fresh
// buffer of the announced size, then truncates it to the length the
// strategy reports. A zero-length result for non-empty input is logged
// as a warning but returned without error: the bucket parse that
// follows decides whether the data is usable.
func (r *Registry) Decompress(code Code, src []byte, announced int) ([]byte, error) {
	if announced < 0 {
		return nil, fault.WireFormat("negative announced size %d", announced)
	}
	strategy, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, announced)
	written, err := strategy.Decompress(src, dst)
	if err != nil {
		return nil, err
	}
	if written > announced {
		return nil, fault.WireFormat("%s produced %d bytes, exceeds announced size %d", code, written, announced)
	}
	if written == 0 && len(src) > 0 {
		r.logger.Warn("decompression produced no output",
			"algorithm", code.String(),
			"compressed_bytes", len(src),
		)
	}
	return dst[:written], nil
}

// Compress compresses src with the strategy for code.
func (r *Registry) Compress(code Code, src []byte) ([]byte, error) {
	strategy, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	return strategy.Compress(src)
}

// Loaded returns the codes whose instances have been constructed,
// sorted ascending.
func (r *Registry) Loaded() []Code {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]Code, 0, len(r.instances))
	for code := range r.instances {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
