// Package main is the entry point for the sandbox execution service.
//
// The server accepts JavaScript modules over HTTP, runs them inside an
// isolated runtime and returns the normalized result together with
// everything the code printed to the console.
//
// The server provides:
//   - POST /execute to run a script function against a payload
//   - GET /health for liveness checks
//   - GET /metrics in Prometheus exposition format
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
