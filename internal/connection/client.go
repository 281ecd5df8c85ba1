package connection

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket connection.
type Client interface {
	// Connect establishes the WebSocket connection.
	Connect(ctx context.Context) error

	// Close gracefully closes the connection.
	Close() error

	// Send writes one text message.
	Send(data []byte) error

	// Messages returns a channel of inbound messages. It is closed when
	// the read loop exits.
	Messages() <-chan TimestampedMessage

	// Errors returns a channel of connection errors.
	Errors() <-chan error

	// IsConnected returns current connection state.
	IsConnected() bool
}

// client implements the Client interface.
type client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	// Output channels
	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	connected  bool
	lastReadAt time.Time
	closed     bool
}

// NewClient creates a new WebSocket client.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &client{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	header := http.Header{}
	if c.cfg.Origin != "" {
		header.Set("Origin", c.cfg.Origin)
	}
	if c.cfg.UserAgent != "" {
		header.Set("User-Agent", c.cfg.UserAgent)
	}

	// The dialer only applies ctx as a deadline once the TCP connection
	// exists. Cancelling ctx also expires the socket so a stalled
	// handshake returns.
	var stopCancel func() bool
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
		NetDialContext: func(dctx context.Context, network, addr string) (net.Conn, error) {
			nc, err := (&net.Dialer{}).DialContext(dctx, network, addr)
			if err != nil {
				return nil, err
			}
			stopCancel = context.AfterFunc(ctx, func() {
				nc.SetDeadline(time.Now())
			})
			return nc, nil
		},
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if stopCancel != nil && !stopCancel() && err == nil {
		// ctx ended after the handshake completed.
		conn.Close()
		err = ctx.Err()
	}
	if err != nil {
		cerr := &ConnectionError{Op: "dial", URL: c.cfg.URL, Err: err}
		if resp != nil {
			cerr.Status = resp.StatusCode
		}
		return cerr
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastReadAt = time.Now()
	c.mu.Unlock()

	go c.readLoop()
	if c.cfg.StaleTimeout > 0 {
		go c.watchdogLoop()
	}

	c.logger.Debug("websocket connected", "url", c.cfg.URL)

	return nil
}

// Close gracefully closes the connection.
func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// Send writes one text message.
func (c *client) Send(data []byte) error {
	c.mu.RLock()
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &ConnectionError{Op: "write", URL: c.cfg.URL, Err: err}
	}
	return nil
}

// Messages returns the messages channel.
func (c *client) Messages() <-chan TimestampedMessage {
	return c.messages
}

// Errors returns the errors channel.
func (c *client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns the current connection state.
func (c *client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop delivers inbound messages until the socket fails or Close is
// called. Delivery blocks when the channel is full; messages are never
// dropped.
func (c *client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.messages)
	}()

	for {
		msgType, data, err := c.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			// Ignore errors after Close() is called
			select {
			case <-c.done:
			default:
				c.reportError(&ConnectionError{Op: "read", URL: c.cfg.URL, Err: err})
			}
			return
		}

		c.mu.Lock()
		c.lastReadAt = receivedAt
		c.mu.Unlock()

		msg := TimestampedMessage{
			Data:       data,
			Binary:     msgType == websocket.BinaryMessage,
			ReceivedAt: receivedAt,
		}

		select {
		case c.messages <- msg:
		case <-c.done:
			return
		}
	}
}

// watchdogLoop closes the socket when no data arrives for StaleTimeout.
func (c *client) watchdogLoop() {
	interval := c.cfg.StaleTimeout / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			lastRead := c.lastReadAt
			connected := c.connected
			c.mu.RUnlock()

			if !connected {
				return
			}
			if time.Since(lastRead) > c.cfg.StaleTimeout {
				c.logger.Warn("no inbound data, connection stale",
					"last_read", lastRead,
					"timeout", c.cfg.StaleTimeout,
				)
				c.reportError(ErrStaleConnection)
				// Unblocks readLoop, which then closes Messages.
				c.conn.Close()
				return
			}
		}
	}
}

func (c *client) reportError(err error) {
	select {
	case c.errors <- err:
	default:
	}
}
