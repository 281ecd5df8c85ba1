package model

import (
	"time"

	"github.com/google/uuid"
)

// QuoteUpdate is one observed change to a symbol's price or indicator.
type QuoteUpdate struct {
	ID         uuid.UUID // Primary key, generated on receipt
	SessionID  string    // Quote session the update arrived on
	Symbol     string    // EXCHANGE:TICKER
	Status     string    // Record status from the server ("ok", "error")
	Price      *float64  // nil when the record carried no price
	Indicator  *float64  // nil when the record carried no indicator
	ReceivedAt int64     // Local receive timestamp (µs since epoch)
}

// NewQuoteUpdate stamps a new update with an id and the receive time.
func NewQuoteUpdate(sessionID, symbol, status string, price, indicator *float64, receivedAt time.Time) QuoteUpdate {
	return QuoteUpdate{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Symbol:     symbol,
		Status:     status,
		Price:      price,
		Indicator:  indicator,
		ReceivedAt: receivedAt.UnixMicro(),
	}
}

// Empty reports whether the update carries neither value.
func (u QuoteUpdate) Empty() bool {
	return u.Price == nil && u.Indicator == nil
}
