package processor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rickgao/tvstream/internal/market"
	"github.com/rickgao/tvstream/internal/metrics"
	"github.com/rickgao/tvstream/internal/model"
	"github.com/rickgao/tvstream/internal/protocol"
)

// QuoteConfig selects which record fields feed the (price, indicator) pair.
type QuoteConfig struct {
	PriceField     string // Wire name of the price field (default "lp")
	IndicatorField string // Wire name of the indicator field; empty disables it
}

// DefaultQuoteConfig returns the default field mapping.
func DefaultQuoteConfig() QuoteConfig {
	return QuoteConfig{
		PriceField: "lp",
	}
}

// extract returns the configured values present in rec.
func (c QuoteConfig) extract(rec *protocol.QuoteRecord) (price, indicator *float64) {
	if c.PriceField != "" {
		if v, ok := rec.Values.Float(c.PriceField); ok {
			price = &v
		}
	}
	if c.IndicatorField != "" {
		if v, ok := rec.Values.Float(c.IndicatorField); ok {
			indicator = &v
		}
	}
	return price, indicator
}

// QuoteStore is the write side of the symbol store.
type QuoteStore interface {
	Update(symbol string, price, indicator *float64) market.Quote
}

// Quote writes streamed quote values into a QuoteStore. Only fields present
// in a record are written; the other half of the pair is left unchanged.
type Quote struct {
	cfg    QuoteConfig
	store  QuoteStore
	logger *slog.Logger
}

// NewQuote creates a Quote processor.
func NewQuote(cfg QuoteConfig, store QuoteStore, logger *slog.Logger) *Quote {
	if logger == nil {
		logger = slog.Default()
	}
	return &Quote{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// Process implements Processor.
func (q *Quote) Process(ctx context.Context, unit protocol.Unit, out Sender) error {
	if !isQuoteData(unit) {
		return nil
	}

	for _, rec := range unit.Message.Quotes() {
		if rec.DecodeErr != nil {
			metrics.DecodeErrors.WithLabelValues("quote_field").Inc()
			q.logger.Warn("quote record has mistyped fields",
				"symbol", rec.Name,
				"error", rec.DecodeErr,
			)
		}
		price, indicator := q.cfg.extract(rec)
		if price == nil && indicator == nil {
			continue
		}
		updated := q.store.Update(rec.Name, price, indicator)
		metrics.QuoteUpdates.Inc()
		q.logger.Debug("quote updated",
			"symbol", rec.Name,
			"price", updated.Price,
			"indicator", updated.Indicator,
		)
	}
	return nil
}

// QuoteSink accepts quote updates for recording. TrySend never blocks; it
// reports false when the sink is full or closed.
type QuoteSink interface {
	TrySend(update model.QuoteUpdate) bool
	Closed() bool
}

// Recorder forwards every quote record carrying a configured value to a
// QuoteSink. It runs on the dispatch worker, so a full sink drops the
// update rather than delaying heartbeat replies.
type Recorder struct {
	cfg       QuoteConfig
	sessionID string
	sink      QuoteSink
	now       func() time.Time
	dropped   atomic.Int64
}

// NewRecorder creates a Recorder for updates on the given session.
func NewRecorder(cfg QuoteConfig, sessionID string, sink QuoteSink) *Recorder {
	return &Recorder{
		cfg:       cfg,
		sessionID: sessionID,
		sink:      sink,
		now:       time.Now,
	}
}

// Process implements Processor.
func (r *Recorder) Process(ctx context.Context, unit protocol.Unit, out Sender) error {
	if !isQuoteData(unit) {
		return nil
	}

	for _, rec := range unit.Message.Quotes() {
		price, indicator := r.cfg.extract(rec)
		if price == nil && indicator == nil {
			continue
		}
		update := model.NewQuoteUpdate(r.sessionID, rec.Name, rec.Status, price, indicator, r.now())
		if r.sink.TrySend(update) {
			continue
		}
		if r.sink.Closed() {
			return ErrSinkClosed
		}
		r.dropped.Add(1)
		metrics.RowsDropped.Inc()
	}
	return nil
}

// Dropped returns how many updates were discarded on a full sink.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func isQuoteData(unit protocol.Unit) bool {
	return unit.Kind == protocol.KindMessage &&
		unit.Message != nil &&
		unit.Message.Method == protocol.MethodQuoteData
}
