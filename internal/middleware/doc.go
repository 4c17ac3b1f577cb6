// Package middleware provides the HTTP middleware stack: request
// logging with field sanitization, Prometheus request metrics with
// bounded path cardinality, and CORS.
package middleware
