package storage

import (
	"context"

	"javea-listings/models"
)

// UpsertResult counts the outcome of one upload.
type UpsertResult struct {
	Written int
	Skipped int
	Errors  int
}

// ListingStore is the interface any storage backend must satisfy.
type ListingStore interface {
	Upsert(ctx context.Context, listings []*models.Listing) (UpsertResult, error)
	FetchAll(ctx context.Context) ([]*PropertyRecord, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(candidates []*models.ListingCandidate) error
	Close() error
}

var (
	_ ListingStore     = (*PostgresWriter)(nil)
	_ ListingStore     = (*SQLiteWriter)(nil)
	_ RawListingWriter = (*CSVWriter)(nil)
)
