package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/tvstream/internal/config"
	"github.com/rickgao/tvstream/internal/database"
	"github.com/rickgao/tvstream/internal/metrics"
	"github.com/rickgao/tvstream/internal/model"
	"github.com/rickgao/tvstream/internal/processor"
	"github.com/rickgao/tvstream/internal/protocol"
	"github.com/rickgao/tvstream/internal/router"
	"github.com/rickgao/tvstream/internal/session"
	"github.com/rickgao/tvstream/internal/version"
	"github.com/rickgao/tvstream/internal/writer"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults only when empty)")
	symbolsFlag := flag.String("symbols", "", "comma separated EXCHANGE:TICKER list, added to the config symbols")
	flag.Parse()

	// Set up structured logging
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := loadConfig(*configPath, *symbolsFlag)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	lvl, err := cfg.Log.SlogLevel()
	if err != nil {
		logger.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	level.Set(lvl)

	logger.Info("configuration loaded",
		"ws_url", cfg.Session.WSURL,
		"field_set", cfg.Session.FieldSet,
		"symbols", len(cfg.Session.Symbols),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	metrics.Register()

	sess, err := session.New(sessionConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}

	quoteCfg := processor.QuoteConfig{
		PriceField:     cfg.Quote.PriceField,
		IndicatorField: cfg.Quote.IndicatorField,
	}
	sess.RegisterProcessor(processor.NewQuote(quoteCfg, sess.Store(), logger))
	sess.RegisterProcessor(processor.NewServerLog(logger))

	// Optional quote history
	var (
		pool        *pgxpool.Pool
		quoteWriter *writer.QuoteWriter
	)
	if cfg.Database.Timescale.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Timescale.Host,
			"port", cfg.Database.Timescale.Port,
			"database", cfg.Database.Timescale.Name,
		)

		pool, err = database.Connect(ctx, cfg.Database.Timescale)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}

		updates := router.NewBoundedBuffer[model.QuoteUpdate](1024, cfg.Writers.BufferSize)
		quoteWriter = writer.NewQuoteWriter(writer.WriterConfig{
			BatchSize:     cfg.Writers.BatchSize,
			FlushInterval: cfg.Writers.FlushInterval,
		}, updates, pool, logger)
		quoteWriter.Start(ctx)

		sess.RegisterProcessor(processor.NewRecorder(quoteCfg, sess.ID(), updates))
		logger.Info("quote writer enabled")
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(cfg, sess, pool),
	}

	go func() {
		logger.Info("starting health server", "port", cfg.Metrics.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	connectCtx, connectCancel := context.WithTimeout(ctx, cfg.Session.HandshakeTimeout)
	err = sess.Connect(connectCtx)
	connectCancel()
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	for _, sym := range cfg.Session.Symbols {
		if err := sess.AddSymbol(ctx, sym); err != nil {
			logger.Error("failed to add symbol", "symbol", sym, "error", err)
		}
	}

	logger.Info("streamer running",
		"session_id", sess.ID(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	snapshotTicker := time.NewTicker(cfg.Quote.SnapshotInterval)
	defer snapshotTicker.Stop()

	exitCode := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-sess.Done():
			if err := sess.Err(); err != nil {
				logger.Error("session ended", "error", err)
				exitCode = 1
			}
			break loop
		case <-snapshotTicker.C:
			logSnapshot(logger, sess)
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := sess.Close(shutdownCtx); err != nil {
		logger.Warn("session close timed out", "error", err)
	}
	if quoteWriter != nil {
		quoteWriter.Stop(shutdownCtx)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("streamer stopped", "stats", fmt.Sprintf("%+v", sess.Stats().Router))
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func loadConfig(path, symbols string) (*config.StreamerConfig, error) {
	var (
		cfg *config.StreamerConfig
		err error
	)
	if path == "" {
		cfg = config.Default()
	} else {
		cfg, err = config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
	}

	for _, sym := range strings.Split(symbols, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			cfg.Session.Symbols = append(cfg.Session.Symbols, sym)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func sessionConfig(cfg *config.StreamerConfig) session.Config {
	return session.Config{
		URL:              cfg.Session.WSURL,
		Origin:           cfg.Session.Origin,
		AuthToken:        cfg.Session.AuthToken,
		FieldSet:         protocol.FieldSet(cfg.Session.FieldSet),
		QueueSize:        cfg.Session.OutboundQueueSize,
		HandshakeTimeout: cfg.Session.HandshakeTimeout,
		WriteTimeout:     cfg.Session.WriteTimeout,
		StaleTimeout:     cfg.Session.StaleTimeout,
		Dispatch: router.RouterConfig{
			InitialBufferSize: cfg.Dispatch.WorkQueueSize,
			MaxBufferSize:     cfg.Dispatch.WorkQueueMax,
		},
	}
}

func logSnapshot(logger *slog.Logger, sess *session.Session) {
	for sym, q := range sess.Store().Snapshot() {
		logger.Info("quote",
			"symbol", sym,
			"price", q.Price,
			"indicator", q.Indicator,
		)
	}
}

// createHealthHandler creates the HTTP handler for health checks, metrics
// and the current quote snapshot.
func createHealthHandler(cfg *config.StreamerConfig, sess *session.Session, pool *pgxpool.Pool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := sess.Stats()
		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["session"] = map[string]interface{}{
			"id":            stats.ID,
			"state":         stats.State.String(),
			"symbols":       stats.Symbols,
			"queue_length":  stats.QueueLength,
			"decode_errors": stats.Router.DecodeErrors,
		}
		switch stats.State {
		case session.StateClosed:
			health.Status = "unhealthy"
		case session.StateCreated, session.StateConnected:
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/quotes", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sess.Store().Snapshot())
	})

	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	return mux
}
