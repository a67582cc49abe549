// Package ratelimit implements a per-client fixed-window request limiter.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"shgbook/internal/log"
)

// Limiter counts requests per client key within fixed windows.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	limit           int
	span            time.Duration
	cleanupInterval time.Duration

	rejected atomic.Int64
	logger   *log.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	last  time.Time
	count int
}

// Config holds rate limiter configuration
type Config struct {
	// Limit is the number of requests a client may make per Window.
	Limit int
	// Window defaults to one minute.
	Window          time.Duration
	CleanupInterval time.Duration
	Logger          *log.Logger
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Window:          time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup loop; call Stop to end it.
func NewLimiter(config Config) *Limiter {
	defaults := DefaultConfig()
	if config.Limit <= 0 {
		config.Limit = defaults.Limit
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.Logger == nil {
		config.Logger = log.Discard()
	}

	rl := &Limiter{
		windows:         make(map[string]*window),
		now:             time.Now,
		limit:           config.Limit,
		span:            config.Window,
		cleanupInterval: config.CleanupInterval,
		logger:          config.Logger.WithComponent(log.ComponentRateLimit),
		stop:            make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Take counts one request for key.
func (rl *Limiter) Take(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.start) >= rl.span {
		w = &window{start: now}
		rl.windows[key] = w
	}
	w.last = now

	d := Decision{Limit: rl.limit}
	if w.count >= rl.limit {
		rl.rejected.Add(1)
		d.RetryAfter = w.start.Add(rl.span).Sub(now)
		return d
	}
	w.count++
	d.Allowed = true
	d.Remaining = rl.limit - w.count
	return d
}

// Allow reports whether a request from key may proceed.
func (rl *Limiter) Allow(key string) bool {
	return rl.Take(key).Allowed
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stop:
			return
		}
	}
}

// cleanup forgets clients idle for ten windows.
func (rl *Limiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-10 * rl.span)
	dropped := 0
	for key, w := range rl.windows {
		if w.last.Before(cutoff) {
			delete(rl.windows, key)
			dropped++
		}
	}
	if dropped > 0 {
		rl.logger.Debug("Dropped idle rate limit clients", "count", dropped)
	}
	return dropped
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

// GetMetrics returns the rejection count and the tracked clients.
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.rejected.Load(),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware limits requests keyed by key(r). Every response carries
// X-RateLimit-Limit and X-RateLimit-Remaining; rejections add Retry-After in
// whole seconds and are rendered by onLimit, or as plain 429 text when nil.
func (rl *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request, Decision)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := key(r)
			d := rl.Take(client)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			rl.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, client,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			if onLimit != nil {
				onLimit(w, r, d)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
