// Package ristretto is the in-process tier of the draft store. Draft
// snapshots for projects being edited on this instance are served from
// memory; the shared NATS KV tier behind it covers reconnects that land
// on another instance.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// avgSnapshotBytes sizes the admission counters. Starter projects
// serialize to a few KB; ristretto wants counters for roughly 10x the
// expected entry count.
const avgSnapshotBytes = 4096

// Cache adapts ristretto to the cache port. Entry cost is the
// serialized snapshot size, so MaxCost bounds total memory.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates the in-process tier holding at most maxCostBytes of
// serialized snapshots.
func New(maxCostBytes int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10 * (maxCostBytes / avgSnapshotBytes),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close releases the cache's internal goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
