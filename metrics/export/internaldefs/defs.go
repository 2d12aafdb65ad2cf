package internaldefs

import (
	sessionkit "github.com/portalkit/sessionkit"
)

// CounterDef binds one session counter to its exposition name.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef binds one session histogram to its exposition name.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported session counter.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricLoginSuccess, Name: "sessionkit_login_success_total", Help: "Successful login attempts."},
	{ID: sessionkit.MetricLoginFailure, Name: "sessionkit_login_failure_total", Help: "Login attempts rejected by the server."},
	{ID: sessionkit.MetricLoginNetworkError, Name: "sessionkit_login_network_error_total", Help: "Login attempts that failed in transport."},
	{ID: sessionkit.MetricRefreshSuccess, Name: "sessionkit_refresh_success_total", Help: "Successful token refreshes."},
	{ID: sessionkit.MetricRefreshRejected, Name: "sessionkit_refresh_rejected_total", Help: "Refreshes rejected by the server, each tearing down the session."},
	{ID: sessionkit.MetricRefreshNetworkError, Name: "sessionkit_refresh_network_error_total", Help: "Refreshes that failed in transport with the session preserved."},
	{ID: sessionkit.MetricRefreshCoalesced, Name: "sessionkit_refresh_coalesced_total", Help: "Callers that joined an in-flight refresh."},
	{ID: sessionkit.MetricLogout, Name: "sessionkit_logout_total", Help: "User-initiated logouts."},
	{ID: sessionkit.MetricForcedLogout, Name: "sessionkit_forced_logout_total", Help: "Expiry- or policy-triggered logouts."},
	{ID: sessionkit.MetricSessionRestored, Name: "sessionkit_session_restored_total", Help: "Sessions reconstructed from storage at startup."},
	{ID: sessionkit.MetricStorageCorrupt, Name: "sessionkit_storage_corrupt_total", Help: "Corrupt persisted session records discarded."},
	{ID: sessionkit.MetricProfileSync, Name: "sessionkit_profile_sync_total", Help: "Profile re-syncs from the server."},
	{ID: sessionkit.MetricProfileUpdate, Name: "sessionkit_profile_update_total", Help: "Profile updates pushed to the server."},
}

// HistogramDefs lists every exported session histogram.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricRefreshLatency, Name: "sessionkit_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramBounds are the upper bucket bounds in seconds, as rendered in the
// Prometheus le label.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are the same bounds spelled for OTel instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets widens a raw snapshot slice to the fixed bucket count.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
