package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"javea-listings/config"
	"javea-listings/models"
	"javea-listings/providers/libretranslate"
	"javea-listings/providers/nominatim"
	"javea-listings/providers/revalidate"
	"javea-listings/scraper/homefinders"
	"javea-listings/services"
	"javea-listings/storage"
	"javea-listings/utils"
)

var (
	verbose bool

	cfg    *config.Config
	logger *utils.Logger

	inputPath  string
	outputPath string
	limit      int
	translate  bool
	upload     bool
)

var rootCmd = &cobra.Command{
	Use:   "javea-listings",
	Short: "Scrape, geocode and deduplicate Javea property listings",
	Long: `javea-listings scrapes sale listings for Javea, resolves each listing's
municipality, area and coordinates, drops duplicates and uploads the
unique listings to the property database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		logger = utils.NewLeveledLogger(os.Stdout, os.Stderr, verbose || cfg.Verbose)
		return nil
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape listings into the raw JSON and CSV files",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := scrape(cmd.Context())
		return err
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Enrich, deduplicate and optionally translate and upload scraped listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inputPath
		if path == "" {
			path = cfg.ScrapedJSONPath
		}
		candidates, err := storage.LoadCandidates(path)
		if err != nil {
			return err
		}
		logger.Info("Loaded %d scraped listings from %s", len(candidates), path)
		return process(cmd.Context(), candidates)
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload previously processed listings to the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := inputPath
		if path == "" {
			path = cfg.ProcessedJSONPath
		}
		listings, err := storage.LoadListings(path)
		if err != nil {
			return err
		}
		logger.Info("Loaded %d processed listings from %s", len(listings), path)
		return publish(cmd.Context(), listings, nil)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape and process in one go",
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, err := scrape(cmd.Context())
		if err != nil {
			return err
		}
		return process(cmd.Context(), candidates)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")

	for _, cmd := range []*cobra.Command{processCmd, runCmd} {
		cmd.Flags().StringVarP(&outputPath, "output", "o", "", "processed JSON path (default PROCESSED_JSON_PATH)")
		cmd.Flags().IntVar(&limit, "limit", 0, "process at most this many listings (0 = all)")
		cmd.Flags().BoolVar(&translate, "translate", false, "translate accepted listings")
		cmd.Flags().BoolVar(&upload, "upload", false, "write to the store (default is a dry run)")
	}
	processCmd.Flags().StringVarP(&inputPath, "input", "i", "", "scraped JSON path (default SCRAPED_JSON_PATH)")
	uploadCmd.Flags().StringVarP(&inputPath, "input", "i", "", "processed JSON path (default PROCESSED_JSON_PATH)")
	uploadCmd.Flags().BoolVar(&upload, "upload", false, "write to the store (default is a dry run)")

	rootCmd.AddCommand(scrapeCmd, processCmd, uploadCmd, runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("%v", err)
		}
		stop()
		os.Exit(1)
	}
}

func scrape(ctx context.Context) ([]*models.ListingCandidate, error) {
	logger.Info("=== Javea listing scraper starting ===")
	logger.Info("Config — pages: %d | limit: %d | concurrency: %d | rate: %dms",
		cfg.PagesToScrape, cfg.ScrapeLimit, cfg.MaxConcurrency, cfg.RateLimitMs)

	fetcher := homefinders.NewBrowserFetcher(ctx, cfg.ChromeBin, logger)
	defer fetcher.Close()

	candidates, err := homefinders.New(cfg, fetcher, logger).Scrape(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no listings were scraped")
	}

	if err := storage.SaveCandidates(cfg.ScrapedJSONPath, candidates); err != nil {
		return nil, err
	}
	logger.Info("Scraped %d listings → %s", len(candidates), cfg.ScrapedJSONPath)

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		return candidates, nil
	}
	defer csvWriter.Close()
	if err := csvWriter.WriteRaw(candidates); err != nil {
		logger.Error("CSV write failed: %v", err)
	} else {
		logger.Info("Raw listings saved to %s", cfg.CSVOutputPath)
	}
	return candidates, nil
}

func process(ctx context.Context, candidates []*models.ListingCandidate) error {
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
		logger.Info("Limiting run to the first %d listings", limit)
	}

	resolver := services.NewGeocodeResolver(
		nominatim.NewClient(cfg.NominatimURL, cfg.GeocodeUserAgent),
		services.NewGeocodeCache(),
		geocodeConfig(cfg),
		logger,
	)
	pipeline := services.NewPipeline(
		services.NewLocationExtractor(cfg.Municipality),
		resolver,
		services.NewClassifier(classifierConfig(cfg), logger),
		logger,
	)

	started := time.Now()
	result, err := pipeline.Run(ctx, candidates)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	logger.Info("Pipeline done in %s — %d unique, %d duplicates, %d failed, %d geocoded (%d cached)",
		time.Since(started).Round(time.Second), result.Report.Accepted, result.Report.Duplicates,
		result.Report.Failed, result.Report.Geocoded, resolver.Cache().Len())

	if translate {
		svc := services.NewTranslationService(
			libretranslate.NewClient(cfg.TranslateURL, cfg.TranslateAPIKey),
			translationConfig(cfg),
			logger,
		)
		if err := svc.TranslateListings(ctx, result.Accepted); err != nil {
			return fmt.Errorf("translate: %w", err)
		}
	}

	out := outputPath
	if out == "" {
		out = cfg.ProcessedJSONPath
	}
	if err := storage.SaveListings(out, result.Accepted); err != nil {
		return err
	}
	logger.Info("Unique listings saved to %s", out)

	return publish(ctx, result.Accepted, &result.Report)
}

// publish uploads listings (or previews the upload) and prints the summary.
func publish(ctx context.Context, listings []*models.Listing, run *models.RunReport) error {
	summary := listings
	if upload {
		stored, err := uploadListings(ctx, listings)
		if err != nil {
			return err
		}
		if stored != nil {
			summary = stored
		}
	} else {
		valid, invalid := storage.PrepareRecords(listings, time.Now())
		logger.Info("Dry run — %d records ready, %d invalid (pass --upload to write)", len(valid), len(invalid))
		for _, err := range invalid {
			logger.Debug("  %v", err)
		}
	}

	insights := services.NewInsightService(logger)
	insights.Print(os.Stdout, insights.Generate(summary), run)
	return nil
}

// uploadListings upserts listings and returns the store's full contents for
// the summary, or nil when the store has no driver configured.
func uploadListings(ctx context.Context, listings []*models.Listing) ([]*models.Listing, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if store == nil {
		logger.Warn("STORE_DRIVER=none, nothing uploaded")
		return nil, nil
	}
	defer store.Close()

	res, err := store.Upsert(ctx, listings)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	logger.Info("Upload complete — %d written, %d skipped, %d errors", res.Written, res.Skipped, res.Errors)
	if total, err := store.Count(ctx); err == nil {
		logger.Info("Store now holds %d properties", total)
	}

	if res.Written > 0 {
		hook := revalidate.NewClient(cfg.RevalidateURL, cfg.RevalidateSecret, logger)
		if err := hook.Trigger(ctx); err != nil {
			logger.Warn("Revalidation failed: %v", err)
		}
	}

	records, err := store.FetchAll(ctx)
	if err != nil {
		logger.Error("Failed to fetch listings from the store for insights: %v", err)
		return nil, nil
	}
	stored := make([]*models.Listing, 0, len(records))
	for _, r := range records {
		stored = append(stored, r.Listing())
	}
	return stored, nil
}
