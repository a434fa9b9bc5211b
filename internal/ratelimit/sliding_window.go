// Package ratelimit provides a Redis sliding-window limiter for code issuance.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims entries older than the window, and records the
// request only if the window still has room. Times are in milliseconds.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count >= limit then
	local retry = window
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
	end
	return {0, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, 0}
`)

type Config struct {
	Limit     int
	Window    time.Duration
	KeyPrefix string
}

// SlidingWindow allows at most Limit requests per key in any Window.
type SlidingWindow struct {
	client redis.UniversalClient
	cfg    Config
	now    func() time.Time
}

func NewSlidingWindow(client redis.UniversalClient, cfg Config) *SlidingWindow {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit:web-auth:"
	}
	return &SlidingWindow{
		client: client,
		cfg:    cfg,
		now:    time.Now,
	}
}

func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	l.now = now
	return l
}

// Allow records a request for key and reports whether it is within the limit.
// When it is not, retryAfter is how long until the oldest request leaves the
// window.
func (l *SlidingWindow) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.cfg.KeyPrefix + key},
		l.now().UnixMilli(), l.cfg.Window.Milliseconds(), l.cfg.Limit, uuid.NewString()).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 2 {
		return false, 0, fmt.Errorf("unexpected rate limit result %v", res)
	}
	allowed, _ := vals[0].(int64)
	retryMs, _ := vals[1].(int64)

	return allowed == 1, time.Duration(retryMs) * time.Millisecond, nil
}
