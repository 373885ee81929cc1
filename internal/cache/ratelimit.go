package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	loginLimitPrefix = "ratelimit:login:"
	// loginLimitIdle is how long an untouched bucket survives. A bucket that
	// has been idle this long would be full again anyway.
	loginLimitIdle = 60 * time.Second
)

// RateLimitResult is the outcome of one login attempt against the bucket.
type RateLimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time     // when the bucket is full again
	RetryAfter time.Duration // zero when Allowed
}

// loginBucketScript is a token bucket stored as a hash of {tokens, ts_ms}.
// It refills continuously at rate tokens per second up to burst and returns
// {allowed, tokens_left_floor, ms_until_next_token, ms_until_full}.
var loginBucketScript = redis.NewScript(`
local key   = KEYS[1]
local rate  = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now   = tonumber(ARGV[3])
local idle  = tonumber(ARGV[4])

local state  = redis.call('HMGET', key, 'tokens', 'ts_ms')
local tokens = tonumber(state[1]) or burst
local ts     = tonumber(state[2]) or now

if now > ts then
	tokens = math.min(burst, tokens + (now - ts) / 1000 * rate)
end

local allowed = 0
local wait_ms = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	wait_ms = math.ceil((1 - tokens) / rate * 1000)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts_ms', tostring(now))
redis.call('PEXPIRE', key, idle)

local full_ms = math.ceil((burst - tokens) / rate * 1000)
return {allowed, math.floor(tokens), wait_ms, full_ms}
`)

// CheckLoginRateLimit spends one login attempt for ip. The address is
// hashed before it becomes part of a key.
//
// On Redis errors the attempt is allowed and the error is returned so the
// caller can log it.
func (c *Cache) CheckLoginRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rate limit: rate and burst must be positive, got %d/%d", ratePerSecond, burst)
	}

	now := c.now()
	res, err := loginBucketScript.Run(ctx, c.client,
		[]string{loginLimitPrefix + hashIP(ip)},
		ratePerSecond, burst, now.UnixMilli(), loginLimitIdle.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return &RateLimitResult{
			Allowed:   true,
			Remaining: int64(burst),
			ResetAt:   now,
		}, fmt.Errorf("rate limit script: %w", err)
	}

	result := &RateLimitResult{
		Allowed:   res[0] == 1,
		Remaining: res[1],
		ResetAt:   now.Add(time.Duration(res[3]) * time.Millisecond),
	}
	if !result.Allowed {
		result.RetryAfter = time.Duration(res[2]) * time.Millisecond
	}
	return result, nil
}

// RetryAfterSeconds rounds r.RetryAfter up to whole seconds for the
// Retry-After header, never returning less than 1 for a rejected attempt.
func (r *RateLimitResult) RetryAfterSeconds() int {
	if r.Allowed {
		return 0
	}
	return max(1, int(math.Ceil(r.RetryAfter.Seconds())))
}

// hashIP keys buckets by the first 8 bytes of sha256(ip) in hex.
func hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:8])
}
