// Package processor defines message processors and the ordered registry
// that holds them.
//
// A processor receives every decoded unit together with a Sender for
// outbound frames. It may reply, update shared state, or ignore the unit.
//
// Built-in processors:
//   - Heartbeat: echoes ~h~ pings (always registered by the session)
//   - Quote: writes price/indicator values into the symbol store
//   - Recorder: forwards quote updates to the quote writer
//   - ServerLog: logs server side protocol errors and opaque payloads
package processor
