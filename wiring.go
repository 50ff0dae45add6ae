package main

import (
	"context"
	"fmt"
	"time"

	"javea-listings/config"
	"javea-listings/services"
	"javea-listings/storage"
	"javea-listings/utils"
)

func geocodeConfig(c *config.Config) services.GeocodeConfig {
	return services.GeocodeConfig{
		Municipality:   c.Municipality,
		Province:       c.Province,
		Region:         c.Region,
		Country:        c.Country,
		AnchorFallback: c.AnchorFallback,
		MinInterval:    time.Duration(c.GeocodeIntervalMs) * time.Millisecond,
		Timeout:        time.Duration(c.GeocodeTimeoutSec) * time.Second,
		MaxAttempts:    c.GeocodeMaxAttempts,
		BaseDelay:      time.Duration(c.GeocodeBaseDelayMs) * time.Millisecond,
		MaxDelay:       time.Duration(c.GeocodeMaxDelayMs) * time.Millisecond,
	}
}

func classifierConfig(c *config.Config) services.ClassifierConfig {
	return services.ClassifierConfig{
		MaxDistanceMeters:   c.DedupMaxDistanceMeters,
		SimilarityThreshold: c.DedupSimilarity,
		PriceTolerance:      c.DedupPriceTolerance,
	}
}

func translationConfig(c *config.Config) services.TranslationConfig {
	tc := services.DefaultTranslationConfig()
	tc.Source = c.TranslateSource
	tc.Targets = c.TranslateTargets
	tc.MinInterval = time.Duration(c.TranslateIntervalMs) * time.Millisecond
	return tc
}

// openStore connects to the configured backend. STORE_DRIVER=none yields a nil store.
func openStore(ctx context.Context, c *config.Config, logger *utils.Logger) (storage.ListingStore, error) {
	switch c.StoreDriver {
	case "postgres":
		return storage.NewPostgresWriter(ctx, c.DSN(), logger)
	case "sqlite":
		return storage.NewSQLiteWriter(ctx, c.SQLitePath, logger)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or none)", c.StoreDriver)
	}
}
