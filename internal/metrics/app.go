package metrics

import (
	"time"

	"github.com/tilerelay/tilerelay/internal/observability"
)

// Server lifecycle and health metric names
const (
	HealthCheckTotal    = "health_check_total"
	HealthCheckDuration = "health_check_duration_ms"
	ServerStartTime     = "server_start_time_seconds"
)

// RecordHealthCheck counts one health check run and its duration.
func RecordHealthCheck(check string, healthy bool, elapsed time.Duration) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	_ = sys.Counter(HealthCheckTotal, 1, map[string]string{"check": check, "status": status})
	_ = sys.Histogram(HealthCheckDuration, elapsed, map[string]string{"check": check})
}

// SetServerStartTime records when serve began listening.
func SetServerStartTime(t time.Time) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(t.Unix()), nil)
	}
}
