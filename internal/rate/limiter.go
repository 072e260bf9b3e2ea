package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is the fixed window for generic rate limiting.
const Window = time.Hour

// checkLua atomically counts an attempt against a fixed window.
// KEYS[1] = counter key
// ARGV[1] = limit
// ARGV[2] = window in seconds
//
// Returns 1 when the attempt is allowed, 0 when denied. The counter is
// decremented back on denial so it never grows past the limit, keeping
// hammered keys bounded.
var checkLua = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
if count > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

// Limiter is a generic fixed-window attempt counter. One Limiter serves any
// number of identifiers; callers namespace identifiers by purpose
// (e.g. "otp:user@example.com").
type Limiter struct {
	redis  redis.UniversalClient
	window time.Duration
}

// NewLimiter creates a [Limiter] with the given window. A zero window
// selects the default [Window].
func NewLimiter(redisClient redis.UniversalClient, window time.Duration) *Limiter {
	if window <= 0 {
		window = Window
	}
	return &Limiter{
		redis:  redisClient,
		window: window,
	}
}

// Check records one attempt for the identifier and reports whether it is
// within the limit. The first attempt in a window initializes the counter at
// 1. Denied attempts do not advance the counter.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int) (bool, error) {
	result, err := checkLua.Run(ctx, l.redis,
		[]string{genericKey(identifier)},
		limit,
		int(l.window.Seconds()),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return result == 1, nil
}

// Remaining returns how many attempts are left in the current window,
// floored at zero. Missing counters report the full limit.
func (l *Limiter) Remaining(ctx context.Context, identifier string, limit int) (int, error) {
	used, err := l.redis.Get(ctx, genericKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return limit, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	remaining := limit - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

func genericKey(identifier string) string {
	return "rl:" + identifier
}
