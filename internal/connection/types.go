package connection

import (
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no inbound data)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// ConnectionError reports a failure to open or use the socket.
type ConnectionError struct {
	Op     string // "dial", "read" or "write"
	URL    string
	Status int // HTTP status of a failed handshake, 0 if none
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	Binary     bool      // True for binary frames, which the protocol never uses
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL
	Origin           string        // Origin header sent with the handshake
	UserAgent        string        // User-Agent header, omitted when empty
	HandshakeTimeout time.Duration // Dial + upgrade deadline
	WriteTimeout     time.Duration // Write deadline for sends
	StaleTimeout     time.Duration // Max silence before the connection is stale, 0 disables
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		StaleTimeout:     60 * time.Second,
		BufferSize:       256,
	}
}
