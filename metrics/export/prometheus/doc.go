// Package prometheus renders sessionkit metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [sessionkit.Manager] and exposes an
// [http.Handler] that renders all sessionkit counters and histograms.
// Counter names are prefixed sessionkit_*_total; the single histogram is
// sessionkit_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate manager state.
package prometheus
