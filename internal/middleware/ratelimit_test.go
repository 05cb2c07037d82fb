package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, rpm, burst int) *MemoryLimiter {
	t.Helper()
	rl := NewMemoryLimiter(RateLimitConfig{
		RequestsPerMinute: rpm,
		BurstSize:         burst,
		CleanupInterval:   time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

// fakeClock returns a controllable time source for MemoryLimiter
func fakeClock(rl *MemoryLimiter) *time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimitConfigs(t *testing.T) {
	def, authCfg := DefaultRateLimitConfig(), AuthRateLimitConfig()
	if authCfg.RequestsPerMinute >= def.RequestsPerMinute {
		t.Errorf("auth limit %d should be stricter than default %d", authCfg.RequestsPerMinute, def.RequestsPerMinute)
	}
	if authCfg.BurstSize <= 0 || def.BurstSize <= 0 {
		t.Error("burst sizes must be positive")
	}
}

func TestMemoryLimiter_AllowsUpToBurst(t *testing.T) {
	rl := newTestLimiter(t, 60, 3)
	fakeClock(rl)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := rl.Allow(ctx, "k")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i+1, d.Allowed, err)
		}
		if d.Remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, d.Remaining, 2-i)
		}
	}

	d, _ := rl.Allow(ctx, "k")
	if d.Allowed {
		t.Fatal("request over burst was allowed")
	}
	if d.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s at 60 rpm", d.RetryAfter)
	}
}

func TestMemoryLimiter_RefillsOverTime(t *testing.T) {
	rl := newTestLimiter(t, 60, 1)
	now := fakeClock(rl)
	ctx := context.Background()

	if d, _ := rl.Allow(ctx, "k"); !d.Allowed {
		t.Fatal("first request denied")
	}
	if d, _ := rl.Allow(ctx, "k"); d.Allowed {
		t.Fatal("second request allowed before refill")
	}

	*now = now.Add(time.Second)
	if d, _ := rl.Allow(ctx, "k"); !d.Allowed {
		t.Error("request denied after one token refilled")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	rl := newTestLimiter(t, 60, 1)
	fakeClock(rl)
	ctx := context.Background()

	rl.Allow(ctx, "a")
	if d, _ := rl.Allow(ctx, "b"); !d.Allowed {
		t.Error("exhausting key a throttled key b")
	}
}

func TestMemoryLimiter_EvictIdle(t *testing.T) {
	rl := newTestLimiter(t, 60, 5)
	now := fakeClock(rl)
	rl.Allow(context.Background(), "stale")

	*now = now.Add(11 * time.Minute)
	rl.Allow(context.Background(), "fresh")
	rl.evictIdle(10 * time.Minute)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["stale"]; ok {
		t.Error("stale entry was not evicted")
	}
	if _, ok := rl.entries["fresh"]; !ok {
		t.Error("fresh entry was evicted")
	}
}

func TestMemoryLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewMemoryLimiter(DefaultRateLimitConfig())
	rl.Stop()
	rl.Stop()
}

func TestGetRateLimitKey(t *testing.T) {
	t.Run("authenticated user", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Set(UserIDKey, int64(42))
		if got := getRateLimitKey(c); got != "user:42" {
			t.Errorf("key = %q, want user:42", got)
		}
	})

	t.Run("anonymous falls back to IP", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.RemoteAddr = "192.0.2.7:5555"
		if got := getRateLimitKey(c); got != "ip:192.0.2.7" {
			t.Errorf("key = %q, want ip:192.0.2.7", got)
		}
	})
}

func newRateLimitRouter(limiter Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(limiter))
	r.POST("/api/auth/login", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func postLogin(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_BlocksOverBudget(t *testing.T) {
	rl := newTestLimiter(t, 10, 2)
	fakeClock(rl)
	r := newRateLimitRouter(rl)

	for i := 0; i < 2; i++ {
		w := postLogin(r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("X-RateLimit-Limit = %q, want 10", got)
		}
	}

	w := postLogin(r)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "6" {
		t.Errorf("Retry-After = %q, want 6 at 10 rpm", got)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["error"] != "Rate limit exceeded" {
		t.Errorf("error = %v", body["error"])
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true, Remaining: 3}, context.DeadlineExceeded
}
func (failingLimiter) Limit() int { return 5 }
func (failingLimiter) Stop()      {}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	w := postLogin(newRateLimitRouter(failingLimiter{}))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when backend errors", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "3" {
		t.Errorf("X-RateLimit-Remaining = %q, want 3", got)
	}
}

func TestRedisLimiter_UnreachableFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	rl := NewRedisLimiter(client, RateLimitConfig{RequestsPerMinute: 10, BurstSize: 2}, "test:")
	d, err := rl.Allow(context.Background(), "k")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !d.Allowed {
		t.Error("redis failure must allow the request")
	}
}

// TestRedisLimiter_Live runs against a real redis when CONSOLE_TEST_REDIS_ADDR is set
func TestRedisLimiter_Live(t *testing.T) {
	addr := os.Getenv("CONSOLE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CONSOLE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()

	prefix := "test:" + strconv.FormatInt(time.Now().UnixNano(), 10) + ":"
	rl := NewRedisLimiter(client, RateLimitConfig{RequestsPerMinute: 10, BurstSize: 2}, prefix)

	for i := 0; i < 2; i++ {
		if d, err := rl.Allow(ctx, "k"); err != nil || !d.Allowed {
			t.Fatalf("request %d: allowed=%v err=%v", i+1, d.Allowed, err)
		}
	}
	d, err := rl.Allow(ctx, "k")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if d.Allowed {
		t.Error("third request allowed with burst 2")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", d.RetryAfter)
	}
}
