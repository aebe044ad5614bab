// Package metrics records provisioning and backend lifecycle metrics.
//
// Collector is implemented by a no-op and by a Prometheus collector on a
// private registry, which the launcher can expose over HTTP.
package metrics
