// Package monitoring exposes Prometheus metrics for HTTP traffic, sandboxed
// executions and the isolate pool, plus the Gin middleware that feeds the
// HTTP series.
package monitoring
