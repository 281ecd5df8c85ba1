package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
session:
  field_set: all
  outbound_queue_size: 32
  symbols:
    - BINANCE:BTCUSDT
    - NASDAQ:AAPL
quote:
  indicator_field: chp
database:
  timescale:
    enabled: true
    host: localhost
    port: 5433
    name: quotes
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Session.FieldSet != "all" {
		t.Errorf("Session.FieldSet = %q, want %q", cfg.Session.FieldSet, "all")
	}
	if cfg.Session.OutboundQueueSize != 32 {
		t.Errorf("Session.OutboundQueueSize = %d, want 32", cfg.Session.OutboundQueueSize)
	}
	if len(cfg.Session.Symbols) != 2 || cfg.Session.Symbols[1] != "NASDAQ:AAPL" {
		t.Errorf("Session.Symbols = %v", cfg.Session.Symbols)
	}
	if cfg.Quote.IndicatorField != "chp" {
		t.Errorf("Quote.IndicatorField = %q, want %q", cfg.Quote.IndicatorField, "chp")
	}
	if !cfg.Database.Timescale.Enabled || cfg.Database.Timescale.Port != 5433 {
		t.Errorf("unexpected timescale config: %+v", cfg.Database.Timescale)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_SYMBOL", "COINBASE:ETHUSD")

	yaml := `
session:
  symbols:
    - ${TEST_SYMBOL}
database:
  timescale:
    host: localhost
    name: quotes
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Timescale.Password != "secret123" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "secret123")
	}
	if len(cfg.Session.Symbols) != 1 || cfg.Session.Symbols[0] != "COINBASE:ETHUSD" {
		t.Errorf("Session.Symbols = %v", cfg.Session.Symbols)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "session:\n  symbols: [BINANCE:BTCUSDT]\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Session.WSURL != DefaultWSURL {
		t.Errorf("Session.WSURL = %q, want default %q", cfg.Session.WSURL, DefaultWSURL)
	}
	if cfg.Session.Origin != DefaultOrigin {
		t.Errorf("Session.Origin = %q, want default %q", cfg.Session.Origin, DefaultOrigin)
	}
	if cfg.Session.AuthToken != DefaultAuthToken {
		t.Errorf("Session.AuthToken = %q, want default %q", cfg.Session.AuthToken, DefaultAuthToken)
	}
	if cfg.Session.FieldSet != DefaultFieldSet {
		t.Errorf("Session.FieldSet = %q, want default %q", cfg.Session.FieldSet, DefaultFieldSet)
	}
	if cfg.Session.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("Session.HandshakeTimeout = %v, want default %v", cfg.Session.HandshakeTimeout, DefaultHandshakeTimeout)
	}
	if cfg.Dispatch.WorkQueueMax != DefaultWorkQueueMax {
		t.Errorf("Dispatch.WorkQueueMax = %d, want default %d", cfg.Dispatch.WorkQueueMax, DefaultWorkQueueMax)
	}
	if cfg.Quote.PriceField != DefaultPriceField {
		t.Errorf("Quote.PriceField = %q, want default %q", cfg.Quote.PriceField, DefaultPriceField)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default %q", cfg.Log.Level, DefaultLogLevel)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "session:\n  symbols: [BINANCE:BTCUSDT]\n")
	if _, err := LoadAndValidate(path); err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	bad := writeTempFile(t, "session:\n  field_set: everything\n")
	_, err := LoadAndValidate(bad)
	if err == nil || !strings.Contains(err.Error(), "session.field_set") {
		t.Errorf("expected field_set validation error, got %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeTempFile(t, "session: [unclosed\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() StreamerConfig {
		return *Default()
	}

	tests := []struct {
		name    string
		mutate  func(*StreamerConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *StreamerConfig) {},
			wantErr: "",
		},
		{
			name:    "http url",
			mutate:  func(c *StreamerConfig) { c.Session.WSURL = "https://example.com" },
			wantErr: `session.ws_url must be a ws:// or wss:// url, got "https://example.com"`,
		},
		{
			name:    "queue too small",
			mutate:  func(c *StreamerConfig) { c.Session.OutboundQueueSize = 2 },
			wantErr: "session.outbound_queue_size must be >= 4",
		},
		{
			name:    "bad symbol",
			mutate:  func(c *StreamerConfig) { c.Session.Symbols = []string{"AAPL"} },
			wantErr: `session.symbols[0] must be EXCHANGE:TICKER, got "AAPL"`,
		},
		{
			name: "work queue max below size",
			mutate: func(c *StreamerConfig) {
				c.Dispatch.WorkQueueSize = 100
				c.Dispatch.WorkQueueMax = 10
			},
			wantErr: "dispatch.work_queue_max (10) cannot be below work_queue_size (100)",
		},
		{
			name: "timescale enabled without host",
			mutate: func(c *StreamerConfig) {
				c.Database.Timescale.Enabled = true
			},
			wantErr: "database.timescale.host is required",
		},
		{
			name: "timescale disabled is not checked",
			mutate: func(c *StreamerConfig) {
				c.Database.Timescale = DBConfig{}
			},
			wantErr: "",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *StreamerConfig) {
				c.Database.Timescale = DBConfig{Enabled: true, Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "metrics port",
			mutate:  func(c *StreamerConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "zero flush interval is allowed",
			mutate:  func(c *StreamerConfig) { c.Writers.FlushInterval = 0 * time.Second },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := LogConfig{Level: tt.level}.SlogLevel()
		if (err != nil) != tt.wantErr {
			t.Errorf("SlogLevel(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
