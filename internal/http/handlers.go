package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"workdiary/internal/backend"
	"workdiary/internal/cache"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.started).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), loadTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", fmt.Errorf("templates not loaded"))
	} else {
		checks["templates"] = "ok"
	}

	if p, ok := s.reader.(backend.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			fail("backend", err)
		} else {
			checks["backend"] = "ok"
		}
	}

	if b, err := s.currentBoard(ctx); err != nil {
		fail("board", err)
	} else {
		checks["board"] = map[string]interface{}{
			"entries": b.Len(),
			"status":  "ok",
		}
	}

	checks["cache"] = map[string]interface{}{
		"board_entries":    s.boards.Size(),
		"markdown_entries": s.markdown.Cache().Size(),
		"status":           "ok",
	}
	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.GetMetrics().ClientCount,
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"backend":   s.backend,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.detector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.trace.GetMetrics()
	boardStats := s.boards.Stats()
	markdownStats := s.markdown.Cache().Stats()

	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	writeMetric(w, "http_requests_in_flight", "Requests currently being served", "gauge", traceMetrics.InFlight)
	writeMetric(w, "http_client_errors_total", "Responses with a 4xx status", "counter", traceMetrics.ClientErrors)
	writeMetric(w, "http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	writeMetric(w, "http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)

	writeMetric(w, "board_loads_total", "Entry loads from the backend", "counter", s.metrics.boardLoads.Load())
	writeMetric(w, "board_load_errors_total", "Failed entry loads", "counter", s.metrics.loadErrors.Load())
	writeMetric(w, "board_invalidations_total", "Board cache invalidations", "counter", s.metrics.invalidations.Load())
	writeMetric(w, "board_selects_total", "Entry selections", "counter", s.metrics.selects.Load())
	writeMetric(w, "board_toggles_total", "Month toggles", "counter", s.metrics.toggles.Load())

	fmt.Fprintf(w, "# HELP cache_hits_total Total cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	writeCacheLine(w, "cache_hits_total", boardStats, markdownStats, func(st cache.Stats) int64 { return st.Hits })
	fmt.Fprintf(w, "# HELP cache_misses_total Total cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	writeCacheLine(w, "cache_misses_total", boardStats, markdownStats, func(st cache.Stats) int64 { return st.Misses })
	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	writeCacheLine(w, "cache_entries", boardStats, markdownStats, func(st cache.Stats) int64 { return int64(st.Size) })

	writeMetric(w, "rate_limit_rejected_total", "Requests rejected by the rate limiter", "counter", rateLimitMetrics.Rejected)
	writeMetric(w, "active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateLimitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	writeMetric(w, "blocked_probes_total", "Scanner probes answered with 404", "counter", securityMetrics.BlockedProbes)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.metrics.started).Seconds())
}

func writeMetric(w http.ResponseWriter, name, help, kind string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, value)
}

func writeCacheLine(w http.ResponseWriter, name string, boardStats, markdownStats cache.Stats, pick func(cache.Stats) int64) {
	fmt.Fprintf(w, "%s{type=\"board\"} %d\n", name, pick(boardStats))
	fmt.Fprintf(w, "%s{type=\"markdown\"} %d\n\n", name, pick(markdownStats))
}
