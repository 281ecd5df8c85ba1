package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/tvstream/internal/protocol"
	"github.com/rickgao/tvstream/internal/router"
)

// Fixed connection parameters.
const (
	DefaultURL       = "wss://data.tradingview.com/socket.io/websocket"
	DefaultOrigin    = "https://s.tradingview.com"
	DefaultAuthToken = "unauthorized_user_token"
)

// Errors
var (
	ErrQueueClosed      = errors.New("outbound queue closed")
	ErrQueueFull        = errors.New("outbound queue full")
	ErrSessionClosed    = errors.New("session closed")
	ErrAlreadyConnected = errors.New("session already connected")
	ErrStreamEnded      = errors.New("inbound stream ended")
)

// ProtocolInitError reports that a mandatory startup frame could not be
// queued.
type ProtocolInitError struct {
	Method string
	Err    error
}

func (e *ProtocolInitError) Error() string {
	return fmt.Sprintf("protocol init: %s: %v", e.Method, e.Err)
}

func (e *ProtocolInitError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of a Session.
type State int32

const (
	StateCreated State = iota
	StateConnected
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnected:
		return "connected"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config configures a Session.
type Config struct {
	URL              string
	Origin           string
	AuthToken        string
	FieldSet         protocol.FieldSet
	QueueSize        int // Outbound queue capacity
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	StaleTimeout     time.Duration // 0 disables stale detection
	Dispatch         router.RouterConfig
}

// DefaultConfig returns the configuration for the public quote endpoint.
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		Origin:           DefaultOrigin,
		AuthToken:        DefaultAuthToken,
		FieldSet:         protocol.FieldSetPrice,
		QueueSize:        64,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		StaleTimeout:     60 * time.Second,
		Dispatch:         router.DefaultRouterConfig(),
	}
}

// Stats is a point-in-time view of a session.
type Stats struct {
	ID          string
	State       State
	Symbols     int
	QueueLength int
	Router      router.RouterStats
}
