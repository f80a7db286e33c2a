// Package lock coordinates work across API and worker instances through Redis.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotConfigured is returned when the locker has no Redis client.
var ErrNotConfigured = errors.New("lock: redis client not configured")

const (
	defaultTTL     = 30 * time.Second
	defaultBackoff = 50 * time.Millisecond
	releaseTimeout = 2 * time.Second
)

// compare-and-delete so an expired holder never frees a successor's lock
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker hands out mutually exclusive sections keyed by name.
type Locker struct {
	R            redis.UniversalClient
	Prefix       string
	RetryBackoff time.Duration
}

// WithLock blocks until key is free, then runs fn while holding it. The lock
// expires after ttl if the holder dies and is released as soon as fn returns.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return ErrNotConfigured
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	token, err := l.acquire(ctx, l.Prefix+key, ttl)
	if err != nil {
		return err
	}
	defer l.release(l.Prefix+key, token)
	return fn(ctx)
}

// Once runs fn at most once per key within remember. Concurrent callers are
// serialised by WithLock; a caller that finds the done marker returns
// (false, nil) without running fn. A failed fn leaves no marker, so a retry
// runs it again.
func (l Locker) Once(ctx context.Context, key string, ttl, remember time.Duration, fn func(context.Context) error) (bool, error) {
	ran := false
	err := l.WithLock(ctx, key, ttl, func(ctx context.Context) error {
		doneKey := l.Prefix + "done:" + key
		n, err := l.R.Exists(ctx, doneKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		if err := fn(ctx); err != nil {
			return err
		}
		ran = true
		return l.R.Set(ctx, doneKey, time.Now().UTC().Format(time.RFC3339), remember).Err()
	})
	return ran, err
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	backoff := l.RetryBackoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Locker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
}
