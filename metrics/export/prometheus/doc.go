// Package prometheus renders engine counters for Prometheus scraping.
//
// [NewExporter] accepts a [portalauth.Engine] and exposes an
// [net/http.Handler] that renders all engine counters in Prometheus text
// exposition format. Counter names are prefixed portalauth_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
