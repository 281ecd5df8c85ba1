// Package connection wraps a single gorilla/websocket connection to the
// streaming endpoint.
//
// The client:
//   - Dials with the configured Origin header and handshake timeout
//   - Delivers every inbound message, stamped with its receive time
//   - Serializes writes and applies a write deadline
//   - Reports a stale connection when nothing arrives for StaleTimeout
package connection
