// Package market holds the Symbol Data Store: the last known price and
// indicator value for every subscribed symbol.
//
// The store:
//   - Is keyed by symbol in EXCHANGE:TICKER form, case sensitive
//   - Creates entries lazily with a (0, 0) pair
//   - Never removes entries (there is no unsubscribe)
//   - Is safe for concurrent use; callers never see the underlying map
package market
