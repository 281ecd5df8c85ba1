package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL             = "wss://data.tradingview.com/socket.io/websocket"
	DefaultOrigin            = "https://s.tradingview.com"
	DefaultAuthToken         = "unauthorized_user_token"
	DefaultFieldSet          = "price"
	DefaultOutboundQueueSize = 64
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultStaleTimeout      = 60 * time.Second
	DefaultWorkQueueSize     = 64
	DefaultWorkQueueMax      = 4096
	DefaultPriceField        = "lp"
	DefaultSnapshotInterval  = 30 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 1000
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
)

func (c *StreamerConfig) applyDefaults() {
	// Session defaults
	if c.Session.WSURL == "" {
		c.Session.WSURL = DefaultWSURL
	}
	if c.Session.Origin == "" {
		c.Session.Origin = DefaultOrigin
	}
	if c.Session.AuthToken == "" {
		c.Session.AuthToken = DefaultAuthToken
	}
	if c.Session.FieldSet == "" {
		c.Session.FieldSet = DefaultFieldSet
	}
	if c.Session.OutboundQueueSize == 0 {
		c.Session.OutboundQueueSize = DefaultOutboundQueueSize
	}
	if c.Session.HandshakeTimeout == 0 {
		c.Session.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Session.WriteTimeout == 0 {
		c.Session.WriteTimeout = DefaultWriteTimeout
	}
	if c.Session.StaleTimeout == 0 {
		c.Session.StaleTimeout = DefaultStaleTimeout
	}

	// Dispatch defaults
	if c.Dispatch.WorkQueueSize == 0 {
		c.Dispatch.WorkQueueSize = DefaultWorkQueueSize
	}
	if c.Dispatch.WorkQueueMax == 0 {
		c.Dispatch.WorkQueueMax = DefaultWorkQueueMax
	}

	// Quote defaults
	if c.Quote.PriceField == "" {
		c.Quote.PriceField = DefaultPriceField
	}
	if c.Quote.SnapshotInterval == 0 {
		c.Quote.SnapshotInterval = DefaultSnapshotInterval
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
