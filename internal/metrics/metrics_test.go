package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilerelay/tilerelay/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()
	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestRelayMetrics(t *testing.T) {
	collector := withCollector(t)

	RecordRelayRequest("GET", 200)
	RecordRedirectHop()
	RecordRedirectHop()
	RecordRedirectDisabled()

	assert.Greater(t, collector.CountMetricsByName(RelayRequestsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RelayRedirectHopsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RelayRedirectsDisabledTotal), 0)
}

func TestResolutionMetrics(t *testing.T) {
	collector := withCollector(t)

	RecordManifestResolution("iiif", "success")
	RecordTileProbeFailure()

	assert.Greater(t, collector.CountMetricsByName(ManifestResolutionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(TileProbeFailuresTotal), 0)
}

func TestErrorAndLifecycleMetrics(t *testing.T) {
	collector := withCollector(t)

	RecordError("MANIFEST_NOT_FOUND", 404)
	RecordErrorByEndpoint("/api/v1/resolve", "MANIFEST_NOT_FOUND")
	RecordPanic()
	RecordHealthCheck("registry", true, 3*time.Millisecond)
	SetServerStartTime(time.Unix(1_700_000_000, 0))

	assert.Greater(t, collector.CountMetricsByName(ErrorsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(ErrorsByEndpoint), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(HealthCheckTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(HealthCheckDuration), 0)
	assert.Greater(t, collector.CountMetricsByName(ServerStartTime), 0)
}

func TestRecordersWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordRelayRequest("POST", 500)
		RecordManifestResolution("iiif", "error")
		RecordPanic()
		RecordHealthCheck("x", false, time.Second)
	})
}
