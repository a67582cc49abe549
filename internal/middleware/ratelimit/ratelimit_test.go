package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(Config{Limit: limit, Window: time.Minute})
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	rl.now = c.Now
	return rl, c
}

func TestTakeEnforcesLimitPerClient(t *testing.T) {
	rl, _ := newTestLimiter(t, 2)

	d := rl.Take("1.1.1.1")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.True(t, rl.Allow("1.1.1.1"))

	d = rl.Take("1.1.1.1")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)

	assert.True(t, rl.Allow("2.2.2.2"), "limits are per client")

	m := rl.GetMetrics()
	assert.Equal(t, int64(1), m.TotalHits)
	assert.Equal(t, int64(2), m.ClientCount)
}

func TestWindowResets(t *testing.T) {
	rl, c := newTestLimiter(t, 1)

	assert.True(t, rl.Allow("ip"))
	c.Advance(45 * time.Second)
	d := rl.Take("ip")
	require.False(t, d.Allowed)
	assert.Equal(t, 15*time.Second, d.RetryAfter)

	c.Advance(15 * time.Second)
	assert.True(t, rl.Allow("ip"))
}

func TestRejectedRequestsDoNotExtendTheWindow(t *testing.T) {
	rl, c := newTestLimiter(t, 1)

	assert.True(t, rl.Allow("ip"))
	for i := 0; i < 5; i++ {
		c.Advance(10 * time.Second)
		assert.False(t, rl.Allow("ip"))
	}
	c.Advance(10 * time.Second)
	assert.True(t, rl.Allow("ip"))
}

func TestCleanupDropsIdleClients(t *testing.T) {
	rl, c := newTestLimiter(t, 5)

	rl.Allow("idle")
	c.Advance(9 * time.Minute)
	rl.Allow("busy")
	c.Advance(2 * time.Minute)

	assert.Equal(t, 1, rl.cleanup())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestMiddleware(t *testing.T) {
	rl, c := newTestLimiter(t, 1)

	ip := func(*http.Request) string { return "9.9.9.9" }
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	h := rl.Middleware(ip, nil)(ok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	c.Advance(30500 * time.Millisecond)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	var got Decision
	custom := rl.Middleware(ip, func(w http.ResponseWriter, r *http.Request, d Decision) {
		got = d
		w.WriteHeader(http.StatusServiceUnavailable)
	})(ok)
	rec = httptest.NewRecorder()
	custom.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, got.Allowed)
	assert.Equal(t, 1, got.Limit)
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
