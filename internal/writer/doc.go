// Package writer batches quote updates into the quotes table.
//
// The writer is an export of the stream. Rows are append-only and the
// symbol store is never reloaded from them.
package writer
