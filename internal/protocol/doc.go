// Package protocol implements the quote stream wire format.
//
// Every frame on the socket is length prefixed:
//
//	~m~<N>~m~<payload>
//
// where N is the byte length of payload. A payload is one of:
//   - a heartbeat: ~h~<n>, which the client must echo back
//   - a JSON message: {"m": "<method>", "p": [<session id>, ...params]}
//   - anything else, which is kept as opaque text
//
// Several frames may arrive concatenated in a single websocket message.
package protocol
