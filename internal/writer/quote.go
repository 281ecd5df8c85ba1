package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/tvstream/internal/metrics"
	"github.com/rickgao/tvstream/internal/model"
	"github.com/rickgao/tvstream/internal/router"
)

const insertQuote = `
	INSERT INTO quotes (id, session_id, symbol, status, price, indicator, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
`

// QuoteWriter consumes QuoteUpdates from a buffer and writes them to the
// quotes table in batches.
type QuoteWriter struct {
	cfg    WriterConfig
	logger *slog.Logger

	input *router.GrowableBuffer[model.QuoteUpdate]
	db    BatchSender

	// Batching
	batch   []quoteRow
	batchMu sync.Mutex
	flushMu sync.Mutex // serializes database round trips

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics WriterMetrics
}

// NewQuoteWriter creates a new QuoteWriter.
func NewQuoteWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[model.QuoteUpdate],
	db BatchSender,
	logger *slog.Logger,
) *QuoteWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	return &QuoteWriter{
		cfg:    cfg,
		input:  input,
		db:     db,
		logger: logger,
		batch:  make([]quoteRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming updates and writing to the database.
func (w *QuoteWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	if w.cfg.FlushInterval > 0 {
		w.wg.Add(1)
		go w.flushLoop(w.cfg.FlushInterval)
	}

	w.logger.Info("quote writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input buffer, waits for queued updates to be consumed
// and flushes what remains.
func (w *QuoteWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping quote writer")

	w.input.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("quote writer stopped")
	case <-ctx.Done():
		w.logger.Warn("quote writer stop timed out")
	}

	if w.cancel != nil {
		w.cancel()
	}

	// Final flush on the caller's context; ours is cancelled.
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *QuoteWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

// consumeLoop reads from the input buffer until it is closed and drained.
func (w *QuoteWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		update, ok := w.input.Receive()
		if !ok {
			return
		}
		w.handleUpdate(update)
	}
}

// flushLoop periodically flushes the batch.
func (w *QuoteWriter) flushLoop(interval time.Duration) {
	defer w.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

// handleUpdate transforms and adds an update to the batch.
func (w *QuoteWriter) handleUpdate(update model.QuoteUpdate) {
	if update.Empty() {
		return
	}
	row := w.transform(update)

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a QuoteUpdate to a quoteRow.
func (w *QuoteWriter) transform(update model.QuoteUpdate) quoteRow {
	status := update.Status
	if status == "" {
		status = "ok"
	}
	return quoteRow{
		ID:         update.ID.String(),
		SessionID:  update.SessionID,
		Symbol:     update.Symbol,
		Status:     status,
		Price:      update.Price,
		Indicator:  update.Indicator,
		ReceivedAt: update.ReceivedAt,
	}
}

// flush writes the current batch to the database.
func (w *QuoteWriter) flush(ctx context.Context) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]quoteRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if w.db == nil {
		w.logger.Debug("no database configured, dropping quotes", "count", len(batch))
		return
	}

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		metrics.WriteErrors.Inc()
		w.batchMu.Lock()
		w.metrics.Errors++
		w.batchMu.Unlock()
		return
	}

	inserted := len(batch) - conflicts
	metrics.RowsWritten.Add(float64(inserted))

	w.batchMu.Lock()
	w.metrics.Inserts += int64(inserted)
	w.metrics.Conflicts += int64(conflicts)
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed quotes",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *QuoteWriter) batchInsert(ctx context.Context, rows []quoteRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertQuote, r.ID, r.SessionID, r.Symbol, r.Status, r.Price, r.Indicator, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
