// Package cache is the read-through/write-through layer in front of the
// store. It is never authoritative and never consulted for authorization;
// every operation degrades to a miss or no-op when the backing Redis is
// absent or failing, so no request can fail because of the cache.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a keyed store with per-entry TTL and pattern invalidation.
// Implementations must swallow backend errors: Get reports a miss, Set, Del
// and DelPattern are no-ops.
type Cache interface {
	// Get unmarshals the value at key into out and reports whether it was
	// present.
	Get(ctx context.Context, key string, out any) bool

	// Set marshals value and stores it under key with the given TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration)

	// Del removes keys.
	Del(ctx context.Context, keys ...string)

	// DelPattern removes every key matching the glob pattern.
	DelPattern(ctx context.Context, pattern string)
}

// Noop is the disabled cache: every Get is a miss, every write a no-op.
type Noop struct{}

func (Noop) Get(context.Context, string, any) bool           { return false }
func (Noop) Set(context.Context, string, any, time.Duration) {}
func (Noop) Del(context.Context, ...string)                  {}
func (Noop) DelPattern(context.Context, string)              {}

func marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}
