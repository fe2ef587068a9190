package metrics

import (
	"strconv"

	"github.com/tilerelay/tilerelay/internal/observability"
)

// Error metric names
const (
	ErrorsTotal      = "errors_total"
	PanicsTotal      = "panics_total"
	ErrorsByEndpoint = "errors_by_endpoint"
)

// RecordError counts an error response by envelope code and HTTP status.
func RecordError(code string, status int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsTotal, 1, map[string]string{
			"error_code":  code,
			"http_status": strconv.Itoa(status),
		})
	}
}

// RecordPanic counts a recovered panic.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, nil)
	}
}

// RecordErrorByEndpoint counts an error response by path and code.
func RecordErrorByEndpoint(endpoint, code string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(ErrorsByEndpoint, 1, map[string]string{
			"endpoint":   endpoint,
			"error_code": code,
		})
	}
}
