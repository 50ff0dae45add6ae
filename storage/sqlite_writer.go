package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"javea-listings/utils"
)

// SQLiteWriter upserts processed listings into a local SQLite file with the
// same properties table as the public site.
type SQLiteWriter struct {
	sqlStore
}

// NewSQLiteWriter opens (or creates) the database at path.
func NewSQLiteWriter(ctx context.Context, path string, logger *utils.Logger) (*SQLiteWriter, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL mode: %w", err)
		}
	}

	sw := &SQLiteWriter{sqlStore{
		db:          db,
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
		logger:      logger,
		now:         time.Now,
	}}
	if err := sw.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return sw, nil
}

func (sw *SQLiteWriter) migrate(ctx context.Context) error {
	_, err := sw.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL CHECK (type IN ('house', 'plot', 'investment')),
		title TEXT NOT NULL DEFAULT '',
		title_en TEXT NOT NULL DEFAULT '',
		title_ru TEXT NOT NULL DEFAULT '',
		price INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		description_en TEXT NOT NULL DEFAULT '',
		description_ru TEXT NOT NULL DEFAULT '',
		images TEXT NOT NULL DEFAULT '[]',
		features TEXT NOT NULL DEFAULT '[]',
		specs TEXT NOT NULL DEFAULT '{}',
		source_url TEXT NOT NULL DEFAULT '',
		source_reference TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'available',
		scraped_at TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_properties_price ON properties(price);
	CREATE INDEX IF NOT EXISTS idx_properties_type ON properties(type);
	`)
	return err
}
