package config

import "time"

// StreamerConfig is the root configuration for a streamer instance.
type StreamerConfig struct {
	Session  SessionConfig  `yaml:"session"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Quote    QuoteConfig    `yaml:"quote"`
	Database DatabaseConfig `yaml:"database"`
	Writers  WritersConfig  `yaml:"writers"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// SessionConfig holds websocket session settings.
type SessionConfig struct {
	WSURL             string        `yaml:"ws_url"`
	Origin            string        `yaml:"origin"`
	AuthToken         string        `yaml:"auth_token"`
	FieldSet          string        `yaml:"field_set"` // "price" or "all"
	OutboundQueueSize int           `yaml:"outbound_queue_size"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	StaleTimeout      time.Duration `yaml:"stale_timeout"`
	Symbols           []string      `yaml:"symbols"`
}

// DispatchConfig sizes the inbound work queue.
type DispatchConfig struct {
	WorkQueueSize int `yaml:"work_queue_size"`
	WorkQueueMax  int `yaml:"work_queue_max"`
}

// QuoteConfig selects the record fields that feed the symbol store.
type QuoteConfig struct {
	PriceField       string        `yaml:"price_field"`
	IndicatorField   string        `yaml:"indicator_field"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

// DatabaseConfig holds the TimescaleDB connection used by the quote writer.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}
