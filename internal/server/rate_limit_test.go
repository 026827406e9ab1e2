package server

import (
	"context"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	rawURL := strings.TrimSpace(os.Getenv("TEST_REDIS_URL"))
	if rawURL == "" {
		t.Skip("redis tests skipped: TEST_REDIS_URL is not set")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		t.Fatalf("parse TEST_REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redis ping: %v", err)
	}
	return client
}

func TestRateLimiterAllowCountsPerWindow(t *testing.T) {
	client := newTestRedis(t)
	limiter := NewRateLimiter(client, RateLimitConfig{
		Window:    time.Hour,
		Limit:     2,
		KeyPrefix: "test_rate_limit:" + testID(),
	})

	ctx := context.Background()
	for i, wantAllowed := range []bool{true, true, false} {
		allowed, remaining, resetTime, err := limiter.Allow(ctx, "user-1")
		if err != nil {
			t.Fatalf("allow #%d: %v", i+1, err)
		}
		if allowed != wantAllowed {
			t.Fatalf("allow #%d: expected %v, got %v", i+1, wantAllowed, allowed)
		}
		if remaining < 0 || remaining > 1 {
			t.Fatalf("allow #%d: unexpected remaining %d", i+1, remaining)
		}
		if !resetTime.After(time.Now()) {
			t.Fatalf("allow #%d: reset time should be in the future, got %s", i+1, resetTime)
		}
	}

	allowed, _, _, err := limiter.Allow(ctx, "user-2")
	if err != nil || !allowed {
		t.Fatalf("expected other user unaffected, allowed=%v err=%v", allowed, err)
	}
}

func TestRateLimiterMiddlewareRejectsOverLimit(t *testing.T) {
	client := newTestRedis(t)
	limiter := NewRateLimiter(client, RateLimitConfig{
		Window:    time.Hour,
		Limit:     1,
		KeyPrefix: "test_rate_limit:" + testID(),
	})
	runner := &fakeChatRunner{}
	router := newUnitRouter(t, WithChatRunner(runner), WithRateLimiter(limiter))
	token := signToken(t, "user-1", nil)

	first := performRequest(t, router, http.MethodPost, "/api/v1/ai/chat", token, map[string]any{"message": "hi"}, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected first call 200, got %d body=%s", first.Code, first.Body.String())
	}
	second := performRequest(t, router, http.MethodPost, "/api/v1/ai/chat", token, map[string]any{"message": "hi"}, nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d body=%s", second.Code, second.Body.String())
	}
	if code := responseErrorCode(t, second); code != codeRateLimited {
		t.Fatalf("expected %s, got %q", codeRateLimited, code)
	}
	if runner.calls != 1 {
		t.Fatalf("expected pipeline to run once, got %d", runner.calls)
	}
}

func TestRateLimiterFailsOpenWhenRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	runner := &fakeChatRunner{}
	router := newUnitRouter(t, WithChatRunner(runner), WithRateLimiter(NewChatRateLimiter(client, 1)))
	token := signToken(t, "user-1", nil)

	rec := performRequest(t, router, http.MethodPost, "/api/v1/ai/chat", token, map[string]any{"message": "hi"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass when redis is down, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Error") == "" {
		t.Fatalf("expected X-RateLimit-Error header")
	}
}
