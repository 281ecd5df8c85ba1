package database

// schema is applied in order by EnsureSchema. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		id          UUID PRIMARY KEY,
		session_id  TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		status      TEXT NOT NULL,
		price       DOUBLE PRECISION,
		indicator   DOUBLE PRECISION,
		received_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quotes_symbol_received_at_idx
		ON quotes (symbol, received_at DESC)`,
}
