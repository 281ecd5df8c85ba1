// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Frame rates in both directions and heartbeat count
//   - Decode and processor failures
//   - Quote updates and quote writer batches
//   - Session state and work queue depth
package metrics
