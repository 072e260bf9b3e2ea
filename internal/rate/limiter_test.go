package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return mr, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()

	limiter := NewLimiter(rdb, time.Hour)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Check(ctx, "otp:alice@example.com", 5)
		if err != nil {
			t.Fatalf("check %d failed: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}

	allowed, err := limiter.Check(ctx, "otp:alice@example.com", 5)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if allowed {
		t.Fatal("attempt past the limit should be denied")
	}
}

func TestLimiterDenialDoesNotGrowCounter(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()

	limiter := NewLimiter(rdb, time.Hour)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := limiter.Check(ctx, "otp:bob@example.com", 3); err != nil {
			t.Fatalf("check failed: %v", err)
		}
	}

	raw, err := mr.Get("rl:otp:bob@example.com")
	if err != nil {
		t.Fatalf("counter key missing: %v", err)
	}
	if raw != "3" {
		t.Fatalf("counter grew past the limit: got %s, want 3", raw)
	}
}

func TestLimiterWindowResets(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()

	limiter := NewLimiter(rdb, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := limiter.Check(ctx, "otp:carol@example.com", 2); err != nil {
			t.Fatalf("check failed: %v", err)
		}
	}

	mr.FastForward(time.Hour + time.Second)

	allowed, err := limiter.Check(ctx, "otp:carol@example.com", 2)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !allowed {
		t.Fatal("first attempt of a fresh window should be allowed")
	}

	raw, err := mr.Get("rl:otp:carol@example.com")
	if err != nil {
		t.Fatalf("counter key missing: %v", err)
	}
	if raw != "1" {
		t.Fatalf("fresh window should restart at 1, got %s", raw)
	}
}

func TestLimiterRemaining(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()

	limiter := NewLimiter(rdb, time.Hour)
	ctx := context.Background()

	remaining, err := limiter.Remaining(ctx, "otp:dave@example.com", 5)
	if err != nil {
		t.Fatalf("remaining failed: %v", err)
	}
	if remaining != 5 {
		t.Fatalf("untouched identifier should have full budget, got %d", remaining)
	}

	for i := 0; i < 2; i++ {
		if _, err := limiter.Check(ctx, "otp:dave@example.com", 5); err != nil {
			t.Fatalf("check failed: %v", err)
		}
	}

	remaining, err = limiter.Remaining(ctx, "otp:dave@example.com", 5)
	if err != nil {
		t.Fatalf("remaining failed: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected 3 remaining, got %d", remaining)
	}
}

func TestLimiterUnavailableFailsClosed(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()

	mr.Close()

	limiter := NewLimiter(rdb, time.Hour)

	allowed, err := limiter.Check(context.Background(), "otp:eve@example.com", 5)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if allowed {
		t.Fatal("unavailable backend must not allow")
	}
}
