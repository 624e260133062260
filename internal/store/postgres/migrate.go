package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations run in order on every start. Each statement must be idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tenders (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'draft',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS boq_items (
		tender_id           TEXT NOT NULL REFERENCES tenders(id) ON DELETE CASCADE,
		item_code           TEXT NOT NULL,
		position            INTEGER NOT NULL,
		description         TEXT NOT NULL,
		quantity            NUMERIC NOT NULL CHECK (quantity >= 0),
		uom                 TEXT NOT NULL,
		estimated_unit_rate NUMERIC NOT NULL DEFAULT 0 CHECK (estimated_unit_rate >= 0),
		estimated_total     NUMERIC NOT NULL DEFAULT 0,
		PRIMARY KEY (tender_id, item_code)
	)`,
	`CREATE TABLE IF NOT EXISTS bids (
		id            TEXT PRIMARY KEY,
		tender_id     TEXT NOT NULL REFERENCES tenders(id) ON DELETE CASCADE,
		bidder_name   TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'draft',
		total_amount  NUMERIC NOT NULL DEFAULT 0,
		submitted_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS bids_tender_idx ON bids (tender_id)`,
	`CREATE TABLE IF NOT EXISTS bid_rates (
		bid_id     TEXT NOT NULL REFERENCES bids(id) ON DELETE CASCADE,
		item_code  TEXT NOT NULL,
		unit_rate  NUMERIC CHECK (unit_rate >= 0),
		PRIMARY KEY (bid_id, item_code)
	)`,
	`CREATE TABLE IF NOT EXISTS boq_imports (
		id           UUID PRIMARY KEY,
		tender_id    TEXT NOT NULL,
		bid_id       TEXT,
		kind         TEXT NOT NULL,
		file_name    TEXT,
		status       TEXT NOT NULL,
		row_count    INTEGER NOT NULL DEFAULT 0,
		message      TEXT,
		remote_addr  TEXT,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS boq_imports_tender_created_idx ON boq_imports (tender_id, created_at DESC)`,
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	slog.Info("database schema ready", "statements", len(migrations))
	return nil
}
