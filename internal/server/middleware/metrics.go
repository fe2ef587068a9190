package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tilerelay/tilerelay/internal/observability"
)

// statusRecorder captures status and body size written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// Flush keeps streamed relay responses flowing through the wrapper.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// knownEndpoints maps paths to low-cardinality labels when chi has no route
// pattern (NotFound, or requests served outside the router).
var knownEndpoints = map[string]string{
	"/":               "/",
	"/proxy":          "/proxy",
	"/api/v1/resolve": "/api/v1/resolve",
	"/api/v1/tiles":   "/api/v1/tiles",
	"/health":         "/health/*",
	"/health/live":    "/health/*",
	"/health/ready":   "/health/*",
	"/health/startup": "/health/*",
	"/version":        "/version",
	"/metrics":        "/metrics",
}

func endpointLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	if label, ok := knownEndpoints[r.URL.Path]; ok {
		return label
	}
	return "/unknown"
}

// RequestMetrics emits http_requests_total, http_request_duration_ms,
// http_response_size_bytes and http_errors_total, and logs each request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry := observability.TelemetrySystem
		logger := observability.ServerLogger
		if telemetry == nil && logger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		endpoint := endpointLabel(r)
		status := strconv.Itoa(rec.status)

		if telemetry != nil {
			labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}
			_ = telemetry.Counter("http_requests_total", 1, labels)
			_ = telemetry.Histogram("http_request_duration_ms", elapsed, labels)
			_ = telemetry.Gauge("http_response_size_bytes", float64(rec.written),
				map[string]string{"method": r.Method, "endpoint": endpoint})

			if rec.status >= http.StatusBadRequest {
				class := "client_error"
				if rec.status >= http.StatusInternalServerError {
					class = "server_error"
				}
				_ = telemetry.Counter("http_errors_total", 1, map[string]string{
					"method":     r.Method,
					"endpoint":   endpoint,
					"status":     status,
					"error_type": class,
				})
			}
		}

		if logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("endpoint", endpoint),
				zap.Int("status", rec.status),
				zap.Duration("duration", elapsed),
				zap.Int64("response_size", rec.written),
				zap.String("request_id", GetRequestID(r.Context())))
		}
	})
}
