package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"javea-listings/models"
)

// LoadCandidates reads scraped candidates from a JSON array file.
func LoadCandidates(path string) ([]*models.ListingCandidate, error) {
	var out []*models.ListingCandidate
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCandidates writes scraped candidates as an indented JSON array.
func SaveCandidates(path string, candidates []*models.ListingCandidate) error {
	return writeJSON(path, candidates)
}

// LoadListings reads processed listings from a JSON array file.
func LoadListings(path string) ([]*models.Listing, error) {
	var out []*models.Listing
	if err := readJSON(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveListings writes processed listings as an indented JSON array.
func SaveListings(path string, listings []*models.Listing) error {
	return writeJSON(path, listings)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("json: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json: decode %q: %w", path, err)
	}
	return nil
}

// writeJSON replaces path through a temp file and rename.
func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("json: create output dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("json: rename %q: %w", tmp, err)
	}
	return nil
}
