// Package database provides the TimescaleDB connection pool used by the
// quote writer, and the schema it writes to.
package database
