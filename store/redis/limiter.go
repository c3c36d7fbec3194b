package redis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/intake/ratelimit"
)

// allowScript is the atomic sliding-window admission check. It prunes
// admissions older than the window, compares the remaining count against the
// limit and, only when the request is admitted, records it. Rejections leave
// the window untouched.
//
// KEYS[1] window zset
// ARGV[1] now (unix nanos)
// ARGV[2] window length (nanos)
// ARGV[3] limit
// ARGV[4] member for this admission
var allowScript = goredis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], math.ceil(tonumber(ARGV[2]) / 1000000))
return 1
`)

// Limiter is the Redis-backed sliding window limiter. All instances sharing
// the same Redis share the same windows, so the ceiling holds across
// replicas.
type Limiter struct {
	rdb goredis.UniversalClient
}

var _ ratelimit.Limiter = (*Limiter)(nil)

// NewLimiter creates a sliding window limiter on the store's Redis client.
func NewLimiter(s *Store) *Limiter {
	return &Limiter{rdb: s.rdb}
}

// Allow admits the request when fewer than limit admissions fall inside the
// rolling window, and records it.
func (l *Limiter) Allow(ctx context.Context, endpointID string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	now := time.Now().UnixNano()
	// Nanosecond timestamps can still collide across replicas; a random
	// suffix keeps concurrent admissions as distinct members.
	member := fmt.Sprintf("%d-%d", now, rand.Uint32())

	res, err := allowScript.Run(ctx, l.rdb,
		[]string{rateLimitKey + endpointID},
		now, ratelimit.Window.Nanoseconds(), limit, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("intake/redis: rate limit check: %w", err)
	}
	return res == 1, nil
}

// Reset clears the window state for an endpoint.
func (l *Limiter) Reset(ctx context.Context, endpointID string) error {
	if err := l.rdb.Del(ctx, rateLimitKey+endpointID).Err(); err != nil {
		return fmt.Errorf("intake/redis: rate limit reset: %w", err)
	}
	return nil
}
