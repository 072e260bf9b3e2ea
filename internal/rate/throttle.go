package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default login throttle policy. The account window is short so a locked-out
// owner recovers quickly; the address window is long because one address can
// probe many accounts.
const (
	AccountWindow = 15 * time.Minute
	AccountLimit  = 5

	AddressWindow = time.Hour
	AddressLimit  = 20
)

// ThrottleResult is the outcome of a login throttle check.
type ThrottleResult struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the current window expires. Only meaningful when the
	// check was denied.
	ResetAt time.Time
}

// Throttle tracks failed login attempts per account identifier and per
// client address, with independent configurable windows.
type Throttle struct {
	redis redis.UniversalClient
}

// NewThrottle creates a login [Throttle] backed by the given Redis client.
func NewThrottle(redisClient redis.UniversalClient) *Throttle {
	return &Throttle{redis: redisClient}
}

// Check reports whether the identifier is within its attempt budget. It
// never mutates the counter; failures are recorded separately through
// [Throttle.RecordFailure]. When denied, ResetAt is derived from the
// counter's remaining TTL so callers can present "try again in N minutes".
func (t *Throttle) Check(ctx context.Context, identifier string, limit int, window time.Duration) (ThrottleResult, error) {
	key := throttleKey(identifier)

	count, err := t.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ThrottleResult{Allowed: true, Remaining: limit}, nil
		}
		return ThrottleResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count >= int64(limit) {
		ttl, err := t.redis.PTTL(ctx, key).Result()
		if err != nil {
			return ThrottleResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ttl < 0 {
			// Counter exists without TTL (window already rolled); treat the
			// remaining wait as a full window.
			ttl = window
		}
		return ThrottleResult{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(ttl)}, nil
	}

	remaining := limit - int(count)
	return ThrottleResult{Allowed: true, Remaining: remaining}, nil
}

// RecordFailure unconditionally counts one failed attempt, creating the
// counter with the window TTL when absent. Returns the attempt count within
// the current window, which feeds [Delay].
func (t *Throttle) RecordFailure(ctx context.Context, identifier string, window time.Duration) (int, error) {
	key := throttleKey(identifier)

	count, err := t.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := t.redis.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	return int(count), nil
}

// ClearOnSuccess deletes the counter so the next attempt starts a fresh
// window. Applied to the account counter only; address counters are shared
// by everyone behind a proxy and are never cleared by one user's success.
func (t *Throttle) ClearOnSuccess(ctx context.Context, identifier string) error {
	if err := t.redis.Del(ctx, throttleKey(identifier)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delay returns the progressive backoff applied before responding to a
// failed attempt. It slows automated credential stuffing while the attempt
// count is still under the hard limit.
func Delay(attempts int) time.Duration {
	switch {
	case attempts <= 4:
		return 0
	case attempts <= 5:
		return 5 * time.Second
	case attempts <= 7:
		return 30 * time.Second
	case attempts <= 10:
		return time.Minute
	default:
		return 5 * time.Minute
	}
}

// Sleep waits for the given delay without holding a thread, returning early
// if the request context is cancelled.
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// AccountKey namespaces a login identifier for the account dimension.
func AccountKey(identifier string) string {
	return "acct:" + identifier
}

// AddressKey namespaces a client network address for the address dimension.
func AddressKey(addr string) string {
	return "addr:" + addr
}

func throttleKey(identifier string) string {
	return "lt:" + identifier
}
