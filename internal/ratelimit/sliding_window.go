package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Scores are unix milliseconds supplied by the caller so the window follows
// the application clock rather than the redis server clock.
const slidingWindowScript = `
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])

if count >= limit then
  local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
  local reset = now + window
  if oldest[2] ~= nil then
    reset = tonumber(oldest[2]) + window
  end
  return {0, count, reset}
end

redis.call("ZADD", KEYS[1], now, ARGV[4])
redis.call("PEXPIRE", KEYS[1], window)
return {1, count + 1, now + window}
`

type SlidingWindow struct {
	client *redis.Client
	script *redis.Script
}

type WindowResult struct {
	Allowed    bool
	Limit      int
	Count      int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewSlidingWindow(client *redis.Client) *SlidingWindow {
	if client == nil {
		return nil
	}
	return &SlidingWindow{
		client: client,
		script: redis.NewScript(slidingWindowScript),
	}
}

// Enabled reports whether a redis client backs the window.
func (w *SlidingWindow) Enabled() bool {
	return w != nil && w.client != nil
}

// Allow records one event at now under key when fewer than limit events fall
// inside the trailing window. Refused events are not recorded.
func (w *SlidingWindow) Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (*WindowResult, error) {
	if !w.Enabled() {
		return nil, errors.New("sliding window not configured")
	}
	if key == "" {
		return nil, errors.New("sliding window key is empty")
	}
	if limit <= 0 {
		return nil, errors.New("sliding window limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("sliding window must be positive")
	}

	res, err := w.script.Run(
		ctx,
		w.client,
		[]string{key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, err
	}
	if len(res) < 3 {
		return nil, errors.New("invalid sliding window script response")
	}

	reset := time.UnixMilli(res[2]).UTC()
	result := &WindowResult{
		Allowed:   res[0] == 1,
		Limit:     limit,
		Count:     int(res[1]),
		ResetTime: reset,
	}
	if !result.Allowed {
		result.RetryAfter = max(reset.Sub(now), 0)
	}
	return result, nil
}
