package metrics

import (
	"strconv"

	"github.com/tilerelay/tilerelay/internal/observability"
)

// Relay and manifest metric names
const (
	RelayRequestsTotal          = "relay_requests_total"
	RelayRedirectHopsTotal      = "relay_redirect_hops_total"
	RelayRedirectsDisabledTotal = "relay_redirects_disabled_total"
	ManifestResolutionsTotal    = "manifest_resolutions_total"
	TileProbeFailuresTotal      = "tile_probe_failures_total"
)

// RecordRelayRequest counts a finished relay call by method and status.
func RecordRelayRequest(method string, status int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RelayRequestsTotal,
			1,
			map[string]string{
				"method": method,
				"status": strconv.Itoa(status),
			},
		)
	}
}

// RecordRedirectHop counts one manually followed redirect.
func RecordRedirectHop() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RelayRedirectHopsTotal, 1, nil)
	}
}

// RecordRedirectDisabled counts a redirect left unfollowed after the hop budget.
func RecordRedirectDisabled() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(RelayRedirectsDisabledTotal, 1, nil)
	}
}

// RecordManifestResolution counts a locate+interpret attempt.
// outcome is one of success, not_found, manifest_error, error.
func RecordManifestResolution(dezoomer, outcome string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ManifestResolutionsTotal,
			1,
			map[string]string{
				"dezoomer": dezoomer,
				"outcome":  outcome,
			},
		)
	}
}

// RecordTileProbeFailure counts a verification tile that could not be loaded.
func RecordTileProbeFailure() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(TileProbeFailuresTotal, 1, nil)
	}
}
