package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"javea-listings/models"
	"javea-listings/utils"
)

var propertyColumns = []string{
	"id", "type", "title", "title_en", "title_ru", "price", "location",
	"description", "description_en", "description_ru",
	"images", "features", "specs",
	"source_url", "source_reference", "status", "scraped_at", "updated_at",
}

// sqlStore holds the upsert and read logic shared by the database/sql
// backends. Dialects differ only in placeholders and schema.
type sqlStore struct {
	db          *sql.DB
	name        string
	placeholder func(n int) string
	logger      *utils.Logger
	now         func() time.Time
}

func (s *sqlStore) upsertQuery() string {
	holders := make([]string, len(propertyColumns))
	updates := make([]string, 0, len(propertyColumns)-1)
	for i, col := range propertyColumns {
		holders[i] = s.placeholder(i + 1)
		if col != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	return fmt.Sprintf(
		"INSERT INTO properties (%s) VALUES (%s) ON CONFLICT (id) DO UPDATE SET %s",
		strings.Join(propertyColumns, ", "),
		strings.Join(holders, ", "),
		strings.Join(updates, ", "),
	)
}

// Upsert inserts or updates every valid listing keyed by id. A failing row
// is counted and logged; the remaining rows are still written.
func (s *sqlStore) Upsert(ctx context.Context, listings []*models.Listing) (UpsertResult, error) {
	var result UpsertResult
	records, invalid := PrepareRecords(listings, s.now())
	for _, err := range invalid {
		s.logger.Warn("[%s] Skipping invalid record: %v", s.name, err)
	}
	result.Skipped = len(invalid)

	query := s.upsertQuery()
	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.upsertOne(ctx, query, r); err != nil {
			s.logger.Error("[%s] [%d/%d] %s: %v", s.name, i+1, len(records), r.ID, err)
			result.Errors++
			continue
		}
		s.logger.Debug("[%s] [%d/%d] Upserted %s", s.name, i+1, len(records), r.ID)
		result.Written++
	}
	return result, nil
}

func (s *sqlStore) upsertOne(ctx context.Context, query string, r *PropertyRecord) error {
	images, features, specs, err := r.encodedColumns()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.Type, r.Title, r.TitleEN, r.TitleRU, r.Price, r.Location,
		r.Description, r.DescriptionEN, r.DescriptionRU,
		images, features, specs,
		r.SourceURL, r.SourceReference, r.Status,
		r.ScrapedAt.UTC().Format(time.RFC3339Nano), r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%s: upsert: %w", s.name, err)
	}
	return nil
}

// FetchAll retrieves all stored properties ordered by id.
func (s *sqlStore) FetchAll(ctx context.Context) ([]*PropertyRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM properties ORDER BY id", strings.Join(propertyColumns, ", ")))
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", s.name, err)
	}
	defer rows.Close()

	var records []*PropertyRecord
	for rows.Next() {
		r := &PropertyRecord{}
		var images, features, specs string
		var scraped, updated any
		if err := rows.Scan(
			&r.ID, &r.Type, &r.Title, &r.TitleEN, &r.TitleRU, &r.Price, &r.Location,
			&r.Description, &r.DescriptionEN, &r.DescriptionRU,
			&images, &features, &specs,
			&r.SourceURL, &r.SourceReference, &r.Status, &scraped, &updated,
		); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", s.name, err)
		}
		if err := r.decodeColumns(images, features, specs); err != nil {
			return nil, fmt.Errorf("%s: row %s: %w", s.name, r.ID, err)
		}
		r.ScrapedAt = parseTimestamp(scraped)
		r.UpdatedAt = parseTimestamp(updated)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Count returns the number of stored properties.
func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties").Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count: %w", s.name, err)
	}
	return n, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// parseTimestamp accepts the driver's native time or its text form.
func parseTimestamp(v any) time.Time {
	var text string
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
