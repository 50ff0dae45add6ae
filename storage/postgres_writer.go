package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"javea-listings/utils"
)

// PostgresWriter upserts processed listings into the PostgreSQL properties table.
type PostgresWriter struct {
	sqlStore
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	retry := &utils.RetryConfig{MaxAttempts: 10, BaseDelay: 2 * time.Second, MaxDelay: 2 * time.Second, Logger: logger}
	if err := retry.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pw := &PostgresWriter{sqlStore{
		db:          db,
		name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		logger:      logger,
		now:         time.Now,
	}}
	if err := pw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS properties (
			id               TEXT PRIMARY KEY,
			type             TEXT   NOT NULL CHECK (type IN ('house', 'plot', 'investment')),
			title            TEXT   NOT NULL DEFAULT '',
			title_en         TEXT   NOT NULL DEFAULT '',
			title_ru         TEXT   NOT NULL DEFAULT '',
			price            BIGINT NOT NULL DEFAULT 0,
			location         TEXT   NOT NULL DEFAULT '',
			description      TEXT   NOT NULL DEFAULT '',
			description_en   TEXT   NOT NULL DEFAULT '',
			description_ru   TEXT   NOT NULL DEFAULT '',
			images           TEXT   NOT NULL DEFAULT '[]',
			features         TEXT   NOT NULL DEFAULT '[]',
			specs            TEXT   NOT NULL DEFAULT '{}',
			source_url       TEXT   NOT NULL DEFAULT '',
			source_reference TEXT   NOT NULL DEFAULT '',
			status           TEXT   NOT NULL DEFAULT 'available',
			scraped_at       TEXT   NOT NULL DEFAULT '',
			updated_at       TEXT   NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_properties_price  ON properties(price);
		CREATE INDEX IF NOT EXISTS idx_properties_type   ON properties(type);
		CREATE INDEX IF NOT EXISTS idx_properties_status ON properties(status);
	`)
	return err
}
