package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// schema is applied statement by statement. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		reference        TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT 'other',
		supplier         TEXT NOT NULL DEFAULT '',
		location         TEXT NOT NULL DEFAULT '',
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		quantity         INTEGER NOT NULL DEFAULT 0,
		manual_threshold INTEGER CHECK (manual_threshold >= 0),
		optimal_stock    INTEGER NOT NULL CHECK (optimal_stock >= 1),
		purchase_price   DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (purchase_price >= 0),
		sale_price       DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (sale_price >= 0),
		lead_time_days   INTEGER NOT NULL DEFAULT 0 CHECK (lead_time_days >= 0),
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles (category)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_supplier ON articles (supplier)`,
	`CREATE TABLE IF NOT EXISTS movements (
		id          TEXT PRIMARY KEY,
		article_id  TEXT NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
		direction   TEXT NOT NULL CHECK (direction IN ('inbound', 'outbound')),
		quantity    INTEGER NOT NULL CHECK (quantity > 0),
		occurred_at TIMESTAMPTZ NOT NULL,
		unit_price  DOUBLE PRECISION NOT NULL DEFAULT 0,
		reason      TEXT NOT NULL DEFAULT '',
		correction  BOOLEAN NOT NULL DEFAULT FALSE,
		sequence    BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_article_time ON movements (article_id, occurred_at, sequence)`,
	`CREATE TABLE IF NOT EXISTS purchase_orders (
		number         TEXT PRIMARY KEY,
		supplier       TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		total_quantity INTEGER NOT NULL,
		total_cost     NUMERIC(14, 2) NOT NULL,
		max_urgency    TEXT NOT NULL,
		status         TEXT NOT NULL CHECK (status IN ('draft', 'sent', 'received'))
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_order_lines (
		order_number      TEXT NOT NULL REFERENCES purchase_orders (number) ON DELETE CASCADE,
		line_no           INTEGER NOT NULL,
		article_id        TEXT NOT NULL,
		article_name      TEXT NOT NULL,
		article_reference TEXT NOT NULL DEFAULT '',
		quantity          INTEGER NOT NULL,
		unit_cost         NUMERIC(14, 4) NOT NULL,
		total             NUMERIC(14, 2) NOT NULL,
		urgency           TEXT NOT NULL,
		PRIMARY KEY (order_number, line_no)
	)`,
}

// Execer is satisfied by *sql.DB, *sql.Tx and their sqlx wrappers.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrate creates the tables and indexes that are missing.
func Migrate(ctx context.Context, db Execer) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "apply schema statement %d (%s)", i+1, firstLine(stmt))
		}
	}
	log.Info().Int("statements", len(schema)).Msg("schema up to date")
	return nil
}

func firstLine(stmt string) string {
	line, _, _ := strings.Cut(stmt, "\n")
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(line), "("))
}
