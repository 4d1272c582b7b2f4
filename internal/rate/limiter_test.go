package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, cfg), mr
}

func TestSignInLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		MaxSignInAttempts:      3,
		SignInCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	if err := limiter.CheckSignIn(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("CheckSignIn before any failures: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := limiter.RecordSignInFailure(ctx, "a@example.com", ""); err != nil {
			t.Fatalf("RecordSignInFailure %d: %v", i, err)
		}
	}

	if err := limiter.RecordSignInFailure(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := limiter.CheckSignIn(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}

	// Other identifiers are unaffected.
	if err := limiter.CheckSignIn(ctx, "b@example.com", ""); err != nil {
		t.Fatalf("unrelated identifier throttled: %v", err)
	}
}

func TestSignInLimitPerIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableIPThrottle:       true,
		MaxSignInAttempts:      2,
		SignInCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.RecordSignInFailure(ctx, "a@example.com", "10.0.0.1"); err != nil {
			t.Fatalf("RecordSignInFailure %d: %v", i, err)
		}
	}
	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "10.0.0.1")

	// Same IP, different identifier: still throttled.
	if err := limiter.CheckSignIn(ctx, "c@example.com", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle, got %v", err)
	}
}

func TestSignInFailureIncrementsIPAfterEmailLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableIPThrottle:       true,
		MaxSignInAttempts:      2,
		SignInCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	// Trip the identifier window from one IP. The third record rejects, but
	// must still charge the IP counter.
	for i := 0; i < 3; i++ {
		_ = limiter.RecordSignInFailure(ctx, "a@example.com", "10.0.0.9")
	}

	if err := limiter.RecordSignInFailure(ctx, "b@example.com", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP counter to carry prior failures, got %v", err)
	}
	if err := limiter.CheckSignIn(ctx, "c@example.com", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle, got %v", err)
	}
}

func TestResetSignIn(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		MaxSignInAttempts:      1,
		SignInCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "")
	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "")
	if err := limiter.CheckSignIn(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := limiter.ResetSignIn(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("ResetSignIn: %v", err)
	}
	if err := limiter.CheckSignIn(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("expected counter to clear, got %v", err)
	}
}

func TestSignInWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{
		MaxSignInAttempts:      1,
		SignInCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "")
	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "")
	if err := limiter.CheckSignIn(ctx, "a@example.com", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := limiter.CheckSignIn(ctx, "a@example.com", ""); err != nil {
		t.Fatalf("expected window to expire, got %v", err)
	}
}

func TestRefreshLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.CheckRefresh(ctx, "cred-1"); err != nil {
			t.Fatalf("CheckRefresh %d: %v", i, err)
		}
	}
	if err := limiter.CheckRefresh(ctx, "cred-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	if err := limiter.CheckRefresh(ctx, "cred-2"); err != nil {
		t.Fatalf("unrelated credential throttled: %v", err)
	}
}

func TestRefreshThrottleDisabled(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := limiter.CheckRefresh(ctx, "cred-1"); err != nil {
			t.Fatalf("CheckRefresh with throttle disabled: %v", err)
		}
	}
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := New(client, Config{MaxSignInAttempts: 1, SignInCooldownDuration: time.Minute})
	mr.Close()

	err := limiter.RecordSignInFailure(context.Background(), "a@example.com", "")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}

func TestGetSignInAttempts(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{
		MaxSignInAttempts:      5,
		SignInCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	n, err := limiter.GetSignInAttempts(ctx, "a@example.com")
	if err != nil || n != 0 {
		t.Fatalf("expected zero attempts, got %d err=%v", n, err)
	}

	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "")
	_ = limiter.RecordSignInFailure(ctx, "a@example.com", "")

	n, err = limiter.GetSignInAttempts(ctx, "a@example.com")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 attempts, got %d err=%v", n, err)
	}
}
