package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Scores are unix milliseconds so they stay exact as Lua doubles. Refused
// events are not recorded, so hammering does not push the window forward.
var slidingScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, window)
local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter is a sliding-window counter kept in a Redis sorted set per key.
type Limiter struct {
	Client redis.UniversalClient
	Prefix string
	Now    func() time.Time
}

// Allow records an event for key when fewer than max events fall within the
// trailing window. Without a client or with non-positive bounds every event
// is allowed.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := time.Now()
	if l.Now != nil {
		now = l.Now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, Reset: now.Add(window)}, nil
	}

	vals, err := slidingScript.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Allowed:   vals[0] == 1,
		Remaining: max - int(vals[1]),
		Reset:     time.UnixMilli(vals[2]),
	}, nil
}
