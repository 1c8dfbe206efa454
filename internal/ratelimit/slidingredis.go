package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSlidingPrefix namespaces sliding window keys when Limiter.Prefix is
// empty.
const DefaultSlidingPrefix = "bloom:rl:sliding:"

// slidingScript trims the window, records the attempt only when it fits and
// reports the oldest score still in the window. Scores are unix microseconds.
var slidingScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
local allowed = 0
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', KEYS[1], ARGV[5])
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
local first = ARGV[1]
if oldest[2] then first = oldest[2] end
return {allowed, count, first}
`)

// Limiter is a sliding window limiter over Redis sorted sets, used for the
// expensive endpoints (QR rendering, tax refresh). Rejected attempts are not
// recorded, so a shop regains budget as soon as its oldest request leaves the
// window.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow checks and records one event for key. The reset time is when the
// oldest event in the window expires.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error) {
	now := l.now()
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, now.Add(window), nil
	}
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultSlidingPrefix
	}

	res, err := slidingScript.Run(ctx, l.Client, []string{prefix + key},
		now.UnixMicro(),
		now.Add(-window).UnixMicro(),
		limit,
		uuid.NewString(),
		window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, now.Add(window), fmt.Errorf("sliding window %s: %w", key, err)
	}
	if len(res) != 3 {
		return false, 0, now.Add(window), fmt.Errorf("sliding window %s: unexpected reply %v", key, res)
	}

	admitted, _ := res[0].(int64)
	count, _ := res[1].(int64)
	oldest := now.UnixMicro()
	if s, ok := res[2].(string); ok {
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			oldest = int64(v)
		}
	}
	remaining = max(0, limit-int(count))
	return admitted == 1, remaining, time.UnixMicro(oldest).Add(window), nil
}
