package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: time.Second,
	}
}

// WriterMetrics tracks writer statistics.
type WriterMetrics struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
}

// BatchSender is the subset of *pgxpool.Pool the writer needs.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// quoteRow represents a row to be inserted into the quotes table.
type quoteRow struct {
	ID         string
	SessionID  string
	Symbol     string
	Status     string
	Price      *float64 // NULL when absent
	Indicator  *float64 // NULL when absent
	ReceivedAt int64    // Microseconds
}
