// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"fmt"
	"sort"

	"github.com/bureau-foundation/eventflow/lib/fault"
)

// Collector is a named, stateful accumulator over a bucket's
// supplementary table. Collector state is bucket-scoped: the Reader
// calls Reset on every bucket switch, then Observe once per event
// pulled from that bucket.
type Collector interface {
	// Name returns the supplementary table name this collector reads.
	Name() string

	// Reset rebinds the collector to a bucket's entries (nil when the
	// bucket has none or is not decoded yet) and rewinds its position.
	Reset(entries [][]byte)

	// Observe is called for the event at index with its entry, or nil
	// when the event has none.
	Observe(index int, entry []byte) error

	// Position returns the number of events observed since the last
	// Reset.
	Position() int
}

// CollectorConstructor builds a collector reading the named table.
type CollectorConstructor func(name string) Collector

// CollectorRegistry maps collector names to constructors. It is
// populated at startup and read-only afterwards.
type CollectorRegistry struct {
	constructors map[string]CollectorConstructor
}

// NewCollectorRegistry creates an empty registry.
func NewCollectorRegistry() *CollectorRegistry {
	return &CollectorRegistry{constructors: make(map[string]CollectorConstructor)}
}

// NewDefaultCollectorRegistry creates a registry with the built-in
// "count" and "latest" collectors.
func NewDefaultCollectorRegistry() *CollectorRegistry {
	registry := NewCollectorRegistry()
	registry.Register("count", func(name string) Collector { return &CountCollector{name: name} })
	registry.Register("latest", func(name string) Collector { return &LatestCollector{name: name} })
	return registry
}

// Register adds a constructor under name. Panics on a duplicate name.
func (r *CollectorRegistry) Register(name string, constructor CollectorConstructor) {
	if _, exists := r.constructors[name]; exists {
		panic(fmt.Sprintf("bucket.CollectorRegistry: duplicate collector %q", name))
	}
	r.constructors[name] = constructor
}

// New constructs the collector registered under name.
func (r *CollectorRegistry) New(name string) (Collector, error) {
	constructor, ok := r.constructors[name]
	if !ok {
		return nil, fault.NotFound("no collector registered as %q", name)
	}
	return constructor(name), nil
}

// Names returns the registered names, sorted.
func (r *CollectorRegistry) Names() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CountCollector counts observed events that carry an entry in its
// table, per bucket and in total.
type CountCollector struct {
	name     string
	position int
	inBucket int
	total    int
}

func (c *CountCollector) Name() string  { return c.name }
func (c *CountCollector) Position() int { return c.position }

func (c *CountCollector) Reset(entries [][]byte) {
	c.position = 0
	c.inBucket = 0
}

func (c *CountCollector) Observe(index int, entry []byte) error {
	c.position = index + 1
	if entry != nil {
		c.inBucket++
		c.total++
	}
	return nil
}

// InBucket returns the count since the last bucket switch.
func (c *CountCollector) InBucket() int { return c.inBucket }

// Total returns the count over the collector's lifetime.
func (c *CountCollector) Total() int { return c.total }

// LatestCollector keeps the entry of the most recently observed event.
type LatestCollector struct {
	name     string
	entries  int
	position int
	latest   []byte
}

func (c *LatestCollector) Name() string  { return c.name }
func (c *LatestCollector) Position() int { return c.position }

func (c *LatestCollector) Reset(entries [][]byte) {
	c.entries = len(entries)
	c.position = 0
	c.latest = c.latest[:0]
}

func (c *LatestCollector) Observe(index int, entry []byte) error {
	c.position = index + 1
	c.latest = append(c.latest[:0], entry...)
	return nil
}

// Latest returns the most recent entry. The slice is overwritten by
// the next Observe.
func (c *LatestCollector) Latest() []byte { return c.latest }

// Available returns the entry count of the bound table.
func (c *LatestCollector) Available() int { return c.entries }
