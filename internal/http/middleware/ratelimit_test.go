package middleware

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestLimiter(rps float64, burst int) (*RateLimiter, *fakeClock) {
	clk := &fakeClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	rl := NewRateLimiter(rps, burst, KeyByUserOrIP())
	rl.now = clk.Now
	return rl, clk
}

func TestKeyByUserOrIP(t *testing.T) {
	key := KeyByUserOrIP()
	r := newEngine()
	r.GET("/anon", func(c *gin.Context) { c.String(http.StatusOK, key(c)) })
	r.GET("/me", asUser("u9"), func(c *gin.Context) { c.String(http.StatusOK, key(c)) })

	assert.Equal(t, "ip:192.0.2.1", serve(r, http.MethodGet, "/anon", nil).Body.String())
	assert.Equal(t, "user:u9", serve(r, http.MethodGet, "/me", nil).Body.String())
}

func TestRateLimiter_PerUserBudget(t *testing.T) {
	rl, clk := newTestLimiter(0.5, 2)
	r := newEngine(RequestID())
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }
	r.POST("/todos", asUser("alice"), rl.Handler(), ok)
	r.PATCH("/todos/:id/toggle", asUser("bob"), rl.Handler(), ok)

	before := testutil.ToFloat64(httpRateLimited.WithLabelValues("/todos"))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/todos", nil).Code)
	}
	w := serve(r, http.MethodPost, "/todos", map[string]string{"X-Request-ID": "rid-rl"})
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Equal(t, ErrorBody{RequestID: "rid-rl", Code: "rate_limited", Message: "rate limit exceeded"}, decodeBody(t, w))
	assert.Equal(t, before+1, testutil.ToFloat64(httpRateLimited.WithLabelValues("/todos")))

	// Another caller has an independent bucket.
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPatch, "/todos/01X/toggle", nil).Code)

	// A rejected request does not spend a token; one refill admits exactly one.
	clk.Add(2 * time.Second)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodPost, "/todos", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/todos", nil).Code)
}

func TestRateLimiter_ZeroRateStillRejects(t *testing.T) {
	rl, _ := newTestLimiter(0, 0)
	assert.Equal(t, 1, rl.burst)
	lim := rl.limiter("k")
	assert.Zero(t, rl.retryAfter(lim))
	assert.Equal(t, time.Second, rl.retryAfter(lim))
}

func TestRateLimiter_ReplayBypass(t *testing.T) {
	rl, _ := newTestLimiter(1, 1)
	r := newEngine(asUser("alice"), func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.POST("/todos", func(c *gin.Context) { c.Status(http.StatusCreated) })

	require.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/todos", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/todos", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(r, http.MethodPost, "/todos", map[string]string{"X-Replay": "1"}).Code)
}

func TestRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl, clk := newTestLimiter(1, 1)
	first := rl.limiter("user:old")
	assert.Same(t, first, rl.limiter("user:old"))

	clk.Add(idleBucketTTL)
	rl.limiter("user:new")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.buckets, "user:old")
	assert.Contains(t, rl.buckets, "user:new")
}

func TestIsRateBypass(t *testing.T) {
	r := newEngine()
	r.GET("/", func(c *gin.Context) {
		assert.False(t, IsRateBypass(c))
		c.Set(ctxKeyRateBypass, "yes")
		assert.False(t, IsRateBypass(c))
		c.Set(ctxKeyRateBypass, true)
		assert.True(t, IsRateBypass(c))
	})
	serve(r, http.MethodGet, "/", nil)
}
