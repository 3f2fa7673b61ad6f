// Package prometheus renders duoauth engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [duoauth.Engine] and exposes an
// [net/http.Handler] covering every engine counter and histogram. Counter
// names end in duoauth_*_total; the single histogram is
// duoauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
