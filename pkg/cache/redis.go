package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production Cache backed by a Redis instance. All backend
// errors are logged at Warn and reported as misses/no-ops.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the Redis at url (redis:// form). A failed initial
// ping is not fatal: the client is returned anyway and individual operations
// keep degrading until the backend comes back.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("Redis unreachable at startup, cache will degrade to misses", "error", err)
	}
	return &Redis{client: client}, nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Get(ctx context.Context, key string, out any) bool {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("Cache entry undecodable, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := marshal(value)
	if err != nil {
		slog.Warn("Cache set skipped, value not marshalable", "key", key, "error", err)
		return
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Warn("Cache set failed", "key", key, "error", err)
	}
}

func (r *Redis) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Cache del failed", "keys", keys, "error", err)
	}
}

// DelPattern scans for keys matching the glob and deletes them in batches.
// SCAN is used instead of KEYS so large keyspaces don't block the server.
func (r *Redis) DelPattern(ctx context.Context, pattern string) {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			r.Del(ctx, batch...)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		slog.Warn("Cache pattern scan failed", "pattern", pattern, "error", err)
	}
	if len(batch) > 0 {
		r.Del(ctx, batch...)
	}
}
