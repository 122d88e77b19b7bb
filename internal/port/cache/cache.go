// Package cache defines the key-value port behind the draft store. The
// backend holds each project's latest unsaved file-map snapshot so an
// editor that reconnects can recover work that was never flushed to the
// database.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value store with per-key expiry. Get reports a miss
// with ok=false and a nil error; errors are reserved for backend
// failures. Implementations may ignore the TTL when expiry is fixed at
// the bucket level.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
