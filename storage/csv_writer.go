package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"javea-listings/models"
)

// CSVWriter writes raw scraped candidates to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"id", "source_reference", "title", "location", "price", "type",
		"bedrooms", "bathrooms", "status", "source_url", "scraped_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRaw appends one row per candidate.
func (c *CSVWriter) WriteRaw(candidates []*models.ListingCandidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range candidates {
		if l == nil {
			continue
		}
		row := []string{
			l.ID,
			l.SourceReference,
			l.Title,
			strings.ReplaceAll(l.LocationText, "\n", " "),
			strconv.FormatInt(l.Price, 10),
			string(l.Type),
			optionalInt(l.Specs.Bedrooms),
			optionalInt(l.Specs.Bathrooms),
			l.Status,
			l.SourceURL,
			l.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
