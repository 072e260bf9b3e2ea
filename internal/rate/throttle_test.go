package rate

import (
	"context"
	"testing"
	"time"
)

func TestThrottleFreshIdentifierAllowed(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()

	throttle := NewThrottle(rdb)

	res, err := throttle.Check(context.Background(), AccountKey("alice"), AccountLimit, AccountWindow)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !res.Allowed {
		t.Fatal("fresh identifier should be allowed")
	}
	if res.Remaining != AccountLimit {
		t.Fatalf("expected full budget %d, got %d", AccountLimit, res.Remaining)
	}
}

func TestThrottleDeniesAtLimitWithResetTime(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()

	throttle := NewThrottle(rdb)
	ctx := context.Background()

	for i := 0; i < AccountLimit; i++ {
		if _, err := throttle.RecordFailure(ctx, AccountKey("alice"), AccountWindow); err != nil {
			t.Fatalf("record failure %d: %v", i+1, err)
		}
	}

	res, err := throttle.Check(ctx, AccountKey("alice"), AccountLimit, AccountWindow)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Allowed {
		t.Fatal("identifier at the limit should be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("denied check should report 0 remaining, got %d", res.Remaining)
	}
	if res.ResetAt.Before(time.Now()) {
		t.Fatal("reset time should be in the future")
	}
	if until := time.Until(res.ResetAt); until > AccountWindow {
		t.Fatalf("reset time beyond the window: %v", until)
	}
}

func TestThrottleCheckDoesNotMutate(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()

	throttle := NewThrottle(rdb)
	ctx := context.Background()

	for i := 0; i < AccountLimit; i++ {
		if _, err := throttle.RecordFailure(ctx, AccountKey("bob"), AccountWindow); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		if _, err := throttle.Check(ctx, AccountKey("bob"), AccountLimit, AccountWindow); err != nil {
			t.Fatalf("check failed: %v", err)
		}
	}

	raw, err := mr.Get("lt:acct:bob")
	if err != nil {
		t.Fatalf("counter key missing: %v", err)
	}
	if raw != "5" {
		t.Fatalf("denied checks must not advance the counter: got %s", raw)
	}
}

func TestThrottleClearOnSuccessResetsWindow(t *testing.T) {
	_, rdb, done := newTestRedis(t)
	defer done()

	throttle := NewThrottle(rdb)
	ctx := context.Background()

	for i := 0; i < AccountLimit; i++ {
		if _, err := throttle.RecordFailure(ctx, AccountKey("carol"), AccountWindow); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	if err := throttle.ClearOnSuccess(ctx, AccountKey("carol")); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	res, err := throttle.Check(ctx, AccountKey("carol"), AccountLimit, AccountWindow)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !res.Allowed || res.Remaining != AccountLimit {
		t.Fatalf("cleared identifier should start fresh, got %+v", res)
	}

	count, err := throttle.RecordFailure(ctx, AccountKey("carol"), AccountWindow)
	if err != nil {
		t.Fatalf("record failure: %v", err)
	}
	if count != 1 {
		t.Fatalf("counter after clear should restart at 1, got %d", count)
	}
}

func TestThrottleWindowExpiry(t *testing.T) {
	mr, rdb, done := newTestRedis(t)
	defer done()

	throttle := NewThrottle(rdb)
	ctx := context.Background()

	for i := 0; i < AccountLimit; i++ {
		if _, err := throttle.RecordFailure(ctx, AccountKey("dave"), AccountWindow); err != nil {
			t.Fatalf("record failure: %v", err)
		}
	}

	mr.FastForward(AccountWindow + time.Second)

	res, err := throttle.Check(ctx, AccountKey("dave"), AccountLimit, AccountWindow)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !res.Allowed {
		t.Fatal("expired window should allow again")
	}
}

func TestDelayTable(t *testing.T) {
	cases := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 0},
		{3, 0},
		{4, 0},
		{5, 5 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
		{8, time.Minute},
		{10, time.Minute},
		{11, 5 * time.Minute},
		{100, 5 * time.Minute},
	}

	for _, tc := range cases {
		if got := Delay(tc.attempts); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	Sleep(ctx, 5*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("cancelled sleep took %v", elapsed)
	}
}
