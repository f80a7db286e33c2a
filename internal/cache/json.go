// Package cache stores JSON payloads in Redis for read-mostly data such as
// partner catalogs and branding.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON wraps Redis helpers for JSON payloads. A nil *JSON or one without a
// client is a valid no-op cache.
type JSON struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New constructs a JSON cache with the given entry TTL.
func New(client redis.UniversalClient, ttl time.Duration) *JSON {
	return &JSON{client: client, ttl: ttl}
}

func (c *JSON) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set serialises v as JSON and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if !c.enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes the given keys.
func (c *JSON) Delete(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// DeletePrefix removes every key starting with prefix using SCAN so Redis is
// never blocked by KEYS.
func (c *JSON) DeletePrefix(ctx context.Context, prefix string) error {
	if !c.enabled() || prefix == "" {
		return nil
	}
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
