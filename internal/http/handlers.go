package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks that the document store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.ready == nil:
		checks["store"] = "not_configured"
	default:
		if err := s.ready.Ready(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["cache"] = map[string]any{
		"summary_entries": s.summaryCache.Size(),
		"totals_entries":  s.totalsCache.Size(),
		"status":          "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	summaries := s.summaryCache.Stats()
	totals := s.totalsCache.Stats()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, typ string, lines ...string) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, typ)
		for _, l := range lines {
			fmt.Fprintf(w, "%s\n", l)
		}
		fmt.Fprintln(w)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter",
		fmt.Sprintf("http_requests_total %d", traceMetrics.TotalRequests))
	metric("http_server_errors_total", "Responses with a 5xx status", "counter",
		fmt.Sprintf("http_server_errors_total %d", traceMetrics.ServerErrors))
	metric("http_response_time_microseconds", "Smoothed response time", "gauge",
		fmt.Sprintf("http_response_time_microseconds %d", traceMetrics.AverageResponseTime))
	metric("cache_hits_total", "Total cache hits", "counter",
		fmt.Sprintf(`cache_hits_total{cache="summaries"} %d`, summaries.Hits),
		fmt.Sprintf(`cache_hits_total{cache="member_totals"} %d`, totals.Hits))
	metric("cache_misses_total", "Total cache misses", "counter",
		fmt.Sprintf(`cache_misses_total{cache="summaries"} %d`, summaries.Misses),
		fmt.Sprintf(`cache_misses_total{cache="member_totals"} %d`, totals.Misses))
	metric("cache_entries", "Current cache entries", "gauge",
		fmt.Sprintf(`cache_entries{cache="summaries"} %d`, summaries.Size),
		fmt.Sprintf(`cache_entries{cache="member_totals"} %d`, totals.Size))
	metric("rate_limit_hits_total", "Total rate limit hits", "counter",
		fmt.Sprintf("rate_limit_hits_total %d", rateLimitMetrics.TotalHits))
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge",
		fmt.Sprintf("active_rate_limit_clients %d", rateLimitMetrics.ClientCount))
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter",
		fmt.Sprintf("suspicious_requests_total %d", securityMetrics.SuspiciousRequests))
	metric("uptime_seconds", "Application uptime in seconds", "gauge",
		fmt.Sprintf("uptime_seconds %.0f", time.Since(s.started).Seconds()))
}
