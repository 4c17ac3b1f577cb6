// Package metrics defines the Prometheus instrumentation for the
// service: HTTP traffic, metadata cache effectiveness, fetch tool runs
// and delivery session outcomes.
package metrics
