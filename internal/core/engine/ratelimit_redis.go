package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apperrors "github.com/namelens/draftprune/internal/errors"
)

// DefaultRedisKey is the sorted set holding shared call records.
const DefaultRedisKey = "draftprune:ratelimit"

// slidingWindowLua trims the call log, then either records the call and
// returns 0, or returns the milliseconds until the oldest record ages out.
const slidingWindowLua = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('PEXPIRE', key, window)
    return 0
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local wait = tonumber(oldest[2]) + window - now
if wait < 1 then
    wait = 1
end
return wait
`

// RedisWindow shares one sliding-window ceiling across processes through a
// redis sorted set. When redis is unreachable it falls back to a local window
// with the same ceiling.
type RedisWindow struct {
	client   redis.UniversalClient
	script   *redis.Script
	key      string
	maxCalls int
	window   time.Duration
	fallback *SlidingWindow

	Timeout time.Duration
	Logger  Logger
	Clock   func() time.Time
	Sleep   func(time.Duration)
}

// NewRedisWindow builds a shared limiter for maxCalls per window under key.
func NewRedisWindow(client redis.UniversalClient, key string, maxCalls int, window time.Duration) (*RedisWindow, error) {
	if client == nil {
		return nil, apperrors.NewConfigInvalidError("redis client is required for the redis rate limit backend")
	}
	fallback, err := NewSlidingWindow(maxCalls, window)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultRedisKey
	}
	r := &RedisWindow{
		client:   client,
		script:   redis.NewScript(slidingWindowLua),
		key:      key,
		maxCalls: maxCalls,
		window:   window,
		fallback: fallback,
		Timeout:  5 * time.Second,
	}
	// The fallback reads Clock and Sleep through r, so later assignments apply.
	fallback.Clock = r.now
	fallback.Sleep = r.sleep
	return r, nil
}

// Acquire blocks until the shared log accepts a call.
func (r *RedisWindow) Acquire() {
	for {
		wait, err := r.tryAcquire()
		if err != nil {
			r.logger().Warn("Redis rate limiter unavailable, using local window",
				zap.String("key", r.key),
				zap.Error(err),
			)
			r.fallback.Acquire()
			return
		}
		if wait <= 0 {
			return
		}
		r.logger().Debug("Rate limit reached, waiting",
			zap.String("key", r.key),
			zap.Duration("wait", wait),
		)
		r.sleep(wait)
	}
}

func (r *RedisWindow) tryAcquire() (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.Timeout)
	defer cancel()

	now := r.now().UnixMilli()
	waitMs, err := r.script.Run(ctx, r.client, []string{r.key},
		now, r.window.Milliseconds(), r.maxCalls, uuid.New().String(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("run sliding window script: %w", err)
	}
	return time.Duration(waitMs) * time.Millisecond, nil
}

func (r *RedisWindow) logger() Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

func (r *RedisWindow) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func (r *RedisWindow) sleep(d time.Duration) {
	if r.Sleep != nil {
		r.Sleep(d)
		return
	}
	time.Sleep(d)
}
