package homefinders

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"javea-listings/config"
	"javea-listings/models"
	"javea-listings/utils"
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Scraper collects listings from the javeahomefinders.com sale search.
type Scraper struct {
	cfg        *config.Config
	logger     *utils.Logger
	fetcher    Fetcher
	pool       *utils.WorkerPool
	visitedURL *utils.URLSet
	retry      *utils.RetryConfig
	now        func() time.Time
}

// New creates a Scraper that renders pages with fetcher.
func New(cfg *config.Config, fetcher Fetcher, logger *utils.Logger) *Scraper {
	interval := time.Duration(cfg.RateLimitMs) * time.Millisecond
	return &Scraper{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher,
		pool:       utils.NewWorkerPool(cfg.MaxConcurrency, interval),
		visitedURL: utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			MaxDelay:    16 * time.Second,
			Logger:      logger,
		},
		now: time.Now,
	}
}

// Scrape walks the search result pages, then visits every property page.
// Listings come back in result-page order.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.ListingCandidate, error) {
	urls, err := s.collectURLs(ctx)
	if err != nil {
		return nil, err
	}
	if s.cfg.ScrapeLimit > 0 && len(urls) > s.cfg.ScrapeLimit {
		urls = urls[:s.cfg.ScrapeLimit]
	}
	s.logger.Info("[homefinders] Scraping %d property pages", len(urls))

	results := make([]*models.ListingCandidate, len(urls))
	for i, u := range urls {
		i, u := i, u
		s.pool.Submit(ctx, func() {
			c, err := s.scrapeDetail(ctx, u)
			if err != nil {
				s.logger.Warn("[homefinders] Detail page failed for %s: %v", u, err)
				return
			}
			s.logger.Debug("[homefinders] [%d/%d] %s: %s (€%d)", i+1, len(urls), c.SourceReference, c.Title, c.Price)
			results[i] = c
		})
	}
	s.pool.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listings := make([]*models.ListingCandidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			listings = append(listings, c)
		}
	}
	s.logger.Info("[homefinders] Scrape complete — %d/%d listings", len(listings), len(urls))
	return listings, nil
}

// collectURLs reads the first results page, then the remaining pages
// announced by its pagination buttons.
func (s *Scraper) collectURLs(ctx context.Context) ([]string, error) {
	searchURL := s.cfg.SearchURL()
	s.logger.Info("[homefinders] Fetching property list from %s", searchURL)

	first, err := s.fetchList(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("results page 1: %w", err)
	}
	if first.Summary != "" {
		s.logger.Info("[homefinders] %s", first.Summary)
	}

	var urls []string
	add := func(found []string) int {
		n := 0
		for _, u := range found {
			if s.visitedURL.Add(u) {
				urls = append(urls, u)
				n++
			}
		}
		return n
	}
	s.logger.Info("[homefinders] Page 1: %d properties", add(first.URLs))

	total := first.TotalPages
	if s.cfg.PagesToScrape > 0 && total > s.cfg.PagesToScrape {
		total = s.cfg.PagesToScrape
	}
	for page := 2; page <= total; page++ {
		if err := utils.SleepContext(ctx, time.Duration(s.cfg.RateLimitMs)*time.Millisecond); err != nil {
			return nil, err
		}
		next, err := s.fetchList(ctx, resultsPageURL(searchURL, page))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("[homefinders] Page %d failed: %v", page, err)
			continue
		}
		s.logger.Info("[homefinders] Page %d: %d new properties", page, add(next.URLs))
	}
	return urls, nil
}

func (s *Scraper) fetchList(ctx context.Context, url string) (listPage, error) {
	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return listPage{}, err
	}
	return parseListPage(doc, s.cfg.BaseURL), nil
}

func (s *Scraper) scrapeDetail(ctx context.Context, url string) (*models.ListingCandidate, error) {
	doc, err := s.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}
	return parseDetail(doc, url, s.now()), nil
}

func (s *Scraper) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	var html string
	err := s.retry.Do(ctx, "fetch "+url, func() error {
		var err error
		html, err = s.fetcher.Fetch(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

// BrowserFetcher renders pages in headless Chrome.
type BrowserFetcher struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
}

// NewBrowserFetcher starts a headless browser allocator. Close releases it.
func NewBrowserFetcher(ctx context.Context, chromeBin string, logger *utils.Logger) *BrowserFetcher {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[homefinders] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	return &BrowserFetcher{
		allocCtx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		timeout: 60 * time.Second,
	}
}

// Fetch opens url in a new tab and returns the document HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(b.allocCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("chromedp: %w", err)
	}
	return html, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() {
	b.cancel()
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
