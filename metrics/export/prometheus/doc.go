// Package prometheus renders core metrics in Prometheus text exposition
// format.
//
// [NewExporter] accepts an [authority.Authority] and exposes an [http.Handler]
// that renders all counters and histograms. Counter names are prefixed
// authority_*_total; the single histogram is authority_validate_latency_seconds.
// Nothing is registered in a global Prometheus registry; callers mount the
// Handler themselves.
package prometheus
