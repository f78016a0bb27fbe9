// Package observability provides structured logging, metrics, and tracing
// for the character chat service.
//
// This package implements:
//   - zap logger construction from configuration
//   - Prometheus collectors for pipeline stages and HTTP traffic
//   - OpenTelemetry spans around pipeline stages
package observability
