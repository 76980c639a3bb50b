package security

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// 滑动窗口：ZSET 成员为每次尝试，score 为毫秒时间戳。
// 清理、计数、记录在同一个脚本里完成，并发请求不会越过上限。
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local n = redis.call('ZCARD', key)
if n >= max then
  return 0
end
redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return 1
`)

// RateLimiter counts attempts per key in a rolling window kept in Redis.
type RateLimiter struct {
	rdb *redis.Client
	Now func() time.Time
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb, Now: time.Now}
}

func rlKey(k string) string { return "cl:rl:" + k }

// Check records an attempt for key and reports whether it is within
// maxAttempts for the window. Once the limit is reached further calls return
// false without recording.
func (l *RateLimiter) Check(ctx context.Context, key string, maxAttempts int, window time.Duration) (bool, error) {
	if maxAttempts <= 0 {
		return false, nil
	}
	now := l.Now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + uuid.NewString()
	n, err := slidingWindow.Run(ctx, l.rdb, []string{rlKey(key)},
		now, window.Milliseconds(), maxAttempts, member).Int()
	if err != nil {
		return true, fmt.Errorf("rate limit %s: %w", key, err)
	}
	return n == 1, nil
}

// Allow is Check as an error: ErrRateLimited when the attempt is rejected,
// a wrapped Redis error (attempt allowed) when the limiter is unavailable.
func (l *RateLimiter) Allow(ctx context.Context, key string, maxAttempts int, window time.Duration) error {
	ok, err := l.Check(ctx, key, maxAttempts, window)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}

// Reset forgets every attempt recorded for key.
func (l *RateLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, rlKey(key)).Err()
}

// LoginKey is the limiter key for login attempts from ip.
func LoginKey(ip string) string { return "login:" + ip }

// ForgotPasswordKey is the limiter key for reset requests from ip.
func ForgotPasswordKey(ip string) string { return "forgot_password:" + ip }
