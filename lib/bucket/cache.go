// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/eventflow/lib/contenthash"
)

// cacheShards is the number of LRU shards in a dedupCache.
const cacheShards = 4

// shardSeed selects the shard for a hash via contenthash.Hash.Mix.
const shardSeed = 0x9747b28c

// dedupCache holds decoded buckets keyed by content hash so a bucket
// seen twice is decompressed and parsed once. Cached buckets are
// shared and must not be mutated.
type dedupCache struct {
	shards [cacheShards]*lru.Cache[contenthash.Hash, *Bucket]
}

// newDedupCache returns nil when size is zero, which disables caching.
func newDedupCache(size int) (*dedupCache, error) {
	if size <= 0 {
		return nil, nil
	}
	perShard := (size + cacheShards - 1) / cacheShards
	cache := &dedupCache{}
	for i := range cache.shards {
		shard, err := lru.New[contenthash.Hash, *Bucket](perShard)
		if err != nil {
			return nil, fmt.Errorf("creating dedup cache shard: %w", err)
		}
		cache.shards[i] = shard
	}
	return cache, nil
}

func (c *dedupCache) shard(hash contenthash.Hash) *lru.Cache[contenthash.Hash, *Bucket] {
	return c.shards[hash.Mix(shardSeed)%cacheShards]
}

func (c *dedupCache) get(hash contenthash.Hash) (*Bucket, bool) {
	if c == nil {
		return nil, false
	}
	return c.shard(hash).Get(hash)
}

func (c *dedupCache) add(hash contenthash.Hash, b *Bucket) {
	if c == nil {
		return
	}
	c.shard(hash).Add(hash, b)
}

func (c *dedupCache) len() int {
	if c == nil {
		return 0
	}
	total := 0
	for _, shard := range c.shards {
		total += shard.Len()
	}
	return total
}
