package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *StreamerConfig) Validate() error {
	if c.Session.WSURL == "" {
		return errors.New("session.ws_url is required")
	}
	if !strings.HasPrefix(c.Session.WSURL, "ws://") && !strings.HasPrefix(c.Session.WSURL, "wss://") {
		return fmt.Errorf("session.ws_url must be a ws:// or wss:// url, got %q", c.Session.WSURL)
	}
	if c.Session.FieldSet != "price" && c.Session.FieldSet != "all" {
		return fmt.Errorf("session.field_set must be \"price\" or \"all\", got %q", c.Session.FieldSet)
	}
	// Two startup frames plus the auth frame must fit before the writer runs.
	if c.Session.OutboundQueueSize < 4 {
		return errors.New("session.outbound_queue_size must be >= 4")
	}
	for i, sym := range c.Session.Symbols {
		if !strings.Contains(sym, ":") {
			return fmt.Errorf("session.symbols[%d] must be EXCHANGE:TICKER, got %q", i, sym)
		}
	}

	if c.Dispatch.WorkQueueSize < 1 {
		return errors.New("dispatch.work_queue_size must be >= 1")
	}
	if c.Dispatch.WorkQueueMax < c.Dispatch.WorkQueueSize {
		return fmt.Errorf("dispatch.work_queue_max (%d) cannot be below work_queue_size (%d)",
			c.Dispatch.WorkQueueMax, c.Dispatch.WorkQueueSize)
	}

	if c.Database.Timescale.Enabled {
		if err := c.Database.Timescale.validate("database.timescale"); err != nil {
			return err
		}
	}

	if c.Writers.BatchSize < 1 {
		return errors.New("writers.batch_size must be >= 1")
	}
	if c.Writers.BufferSize < 1 {
		return errors.New("writers.buffer_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
