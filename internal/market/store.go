package market

import (
	"sort"
	"sync"
)

// Quote is the cached pair for one symbol.
type Quote struct {
	Price     float64 `json:"price"`
	Indicator float64 `json:"indicator"`
}

// Store maps symbols to their last known Quote.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		quotes: make(map[string]Quote),
	}
}

// Reserve adds a (0, 0) entry for symbol. It reports false if the symbol
// was already present.
func (s *Store) Reserve(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quotes[symbol]; exists {
		return false
	}
	s.quotes[symbol] = Quote{}
	return true
}

// Release removes symbol. It undoes a Reserve whose subscription was never
// sent.
func (s *Store) Release(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quotes, symbol)
}

// Get returns the cached pair, or (0, 0) for an unknown symbol.
func (s *Store) Get(symbol string) (price, indicator float64) {
	q, _ := s.Lookup(symbol)
	return q.Price, q.Indicator
}

// Lookup returns the cached quote and whether the symbol is known.
func (s *Store) Lookup(symbol string) (Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	return q, ok
}

// SetPrice sets the price half of the pair, keeping the indicator.
func (s *Store) SetPrice(symbol string, price float64) {
	s.Update(symbol, &price, nil)
}

// SetIndicator sets the indicator half of the pair, keeping the price.
func (s *Store) SetIndicator(symbol string, indicator float64) {
	s.Update(symbol, nil, &indicator)
}

// Update writes the non-nil halves of the pair and returns the result.
// The entry is created if missing.
func (s *Store) Update(symbol string, price, indicator *float64) Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.quotes[symbol]
	if price != nil {
		q.Price = *price
	}
	if indicator != nil {
		q.Indicator = *indicator
	}
	s.quotes[symbol] = q
	return q
}

// Symbols returns every known symbol, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		out = append(out, sym)
	}
	s.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() map[string]Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Quote, len(s.quotes))
	for sym, q := range s.quotes {
		out[sym] = q
	}
	return out
}

// Len returns the number of known symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}
