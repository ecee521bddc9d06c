package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis persists the token pair in Redis under two origin-scoped keys.
// It is the durable backend for deployments that already carry a Redis
// client; TTL keeps abandoned pairs from outliving the refresh token.
type Redis struct {
	client redis.UniversalClient
	origin string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. origin scopes the keys so
// multiple portals can share one Redis database; ttl bounds how long a
// saved pair may sit untouched (0 = no expiry).
func NewRedis(client redis.UniversalClient, origin string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("credstore: redis client required")
	}
	if origin == "" {
		return nil, errors.New("credstore: origin required")
	}
	return &Redis{client: client, origin: origin, ttl: ttl}, nil
}

func (r *Redis) accessKey() string  { return "cred:" + r.origin + ":access" }
func (r *Redis) refreshKey() string { return "cred:" + r.origin + ":refresh" }

// Save writes both keys in one pipeline so a reader never observes half a
// pair.
func (r *Redis) Save(ctx context.Context, pair Pair) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.accessKey(), pair.AccessToken, r.ttl)
	pipe.Set(ctx, r.refreshKey(), pair.RefreshToken, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("credstore: redis save: %w", err)
	}
	return nil
}

// Read returns the stored pair, or (nil, nil) when either key is absent.
func (r *Redis) Read(ctx context.Context) (*Pair, error) {
	vals, err := r.client.MGet(ctx, r.accessKey(), r.refreshKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("credstore: redis read: %w", err)
	}

	access, ok := vals[0].(string)
	if !ok {
		return nil, nil
	}
	refresh, ok := vals[1].(string)
	if !ok {
		return nil, nil
	}
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Clear deletes both keys. Del ignores keys that are already gone, which
// keeps Clear idempotent even when only one key survived a TTL expiry.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.accessKey(), r.refreshKey()).Err(); err != nil {
		return fmt.Errorf("credstore: redis clear: %w", err)
	}
	return nil
}
