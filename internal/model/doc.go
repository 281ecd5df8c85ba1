// Package model defines data types shared between the quote pipeline and
// the quote writer.
//
// Conventions:
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: uuid.UUID for rows, string for symbols and session ids
//   - Optional prices are pointers; nil means the field was absent
package model
