// Package http serves the group's bookkeeping API as JSON over chi.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"shgbook/internal/auth"
	"shgbook/internal/cache"
	"shgbook/internal/core"
	"shgbook/internal/log"
	"shgbook/internal/middleware/ratelimit"
	"shgbook/internal/middleware/security"
	"shgbook/internal/middleware/trace"
	"shgbook/internal/services"
)

// ReadinessChecker reports whether the document store answers.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// SheetImporter pulls a year back from the spreadsheet.
type SheetImporter interface {
	Import(ctx context.Context, actor core.Actor, year int) (core.YearLedger, error)
}

// Options wires the server's collaborators.
type Options struct {
	Addr               string
	Services           *services.Services
	Ready              ReadinessChecker
	Auth               *auth.Middleware
	Importer           SheetImporter
	RateLimitPerMinute int
	TrustedProxies     []string
	CacheSize          int
	CacheTTL           time.Duration
	HeartbeatInterval  time.Duration
	Logger             *log.Logger
}

type Server struct {
	http.Server

	svc      *services.Services
	ready    ReadinessChecker
	importer SheetImporter
	logger   *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	summaryCache *cache.LRUCache[core.YearSummary]
	totalsCache  *cache.LRUCache[[]core.MemberTotals]
	cacheManager *cache.Manager

	heartbeat    time.Duration
	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Services == nil {
		return nil, fmt.Errorf("services are required")
	}
	if opts.Auth == nil {
		return nil, fmt.Errorf("auth middleware is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 25 * time.Second
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector(logger)
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		svc:              opts.Services,
		ready:            opts.Ready,
		importer:         opts.Importer,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{Limit: opts.RateLimitPerMinute, Window: time.Minute, Logger: logger}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		summaryCache:     cache.NewLRUCache[core.YearSummary](opts.CacheSize, opts.CacheTTL),
		totalsCache:      cache.NewLRUCache[[]core.MemberTotals](opts.CacheSize, opts.CacheTTL),
		cacheManager:     cache.NewManager(logger),
		heartbeat:        opts.HeartbeatInterval,
		started:          time.Now(),
	}
	s.cacheManager.Register("summaries", s.summaryCache)
	s.cacheManager.Register("member_totals", s.totalsCache)
	s.cacheManager.StartCleanup(time.Minute)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts.Auth),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(am *auth.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(s.traceMiddleware.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware(true))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, core.NotFound("No route for %s", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed", Kind: "validation"})
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(api chi.Router) {
		api.Use(am.RequireAuth)
		api.Use(s.limitWrites)

		s.sessionRoutes(api)
		s.groupRoutes(api)
		s.memberRoutes(api)
		s.ledgerRoutes(api)
		s.userRoutes(api)
	})
	return r
}

// limitWrites rate-limits mutating requests only.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request, _ ratelimit.Decision) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Rate limit exceeded. Please try again later.", Kind: "rate_limited"})
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// actor returns the authenticated caller. RequireAuth guarantees one on /api.
func actor(r *http.Request) core.Actor {
	a, _ := auth.ActorFrom(r.Context())
	return a
}

func (s *Server) invalidateYear(year int) {
	s.summaryCache.Delete(summaryKey(year))
	s.totalsCache.Delete(totalsKey(year))
}

func (s *Server) invalidateAll() {
	s.summaryCache.Purge()
	s.totalsCache.Purge()
}

func summaryKey(year int) string { return fmt.Sprintf("summary:%d", year) }
func totalsKey(year int) string  { return fmt.Sprintf("totals:%d", year) }

// Shutdown stops background helpers and drains connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.rateLimiter.Stop()
		s.cacheManager.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
