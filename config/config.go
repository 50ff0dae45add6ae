package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// StoreDriver selects the upload target: postgres, sqlite or none.
	StoreDriver      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	SQLitePath       string

	BaseURL        string
	SearchPath     string
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	PagesToScrape  int
	ScrapeLimit    int
	ChromeBin      string

	NominatimURL       string
	GeocodeUserAgent   string
	GeocodeIntervalMs  int
	GeocodeTimeoutSec  int
	GeocodeMaxAttempts int
	GeocodeBaseDelayMs int
	GeocodeMaxDelayMs  int
	Municipality       string
	Province           string
	Region             string
	Country            string
	AnchorFallback     bool

	DedupMaxDistanceMeters float64
	DedupSimilarity        float64
	DedupPriceTolerance    float64

	TranslateURL        string
	TranslateAPIKey     string
	TranslateSource     string
	TranslateTargets    []string
	TranslateIntervalMs int

	CSVOutputPath     string
	ScrapedJSONPath   string
	ProcessedJSONPath string

	RevalidateURL    string
	RevalidateSecret string

	Verbose bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "javea"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "javea123"),
		PostgresDB:       getEnv("POSTGRES_DB", "javea_properties"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "./output/properties.db"),

		BaseURL:        getEnv("SOURCE_BASE_URL", "https://www.javeahomefinders.com"),
		SearchPath:     getEnv("SOURCE_SEARCH_PATH", "/search-property?trans=sale&city=85182"),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		PagesToScrape:  getEnvInt("PAGES_TO_SCRAPE", 0),
		ScrapeLimit:    getEnvInt("SCRAPE_LIMIT", 0),
		ChromeBin:      getEnv("CHROME_BIN", ""),

		NominatimURL:       getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		GeocodeUserAgent:   getEnv("GEOCODE_USER_AGENT", "javea-real-estate-processor"),
		GeocodeIntervalMs:  getEnvInt("GEOCODE_INTERVAL_MS", 1200),
		GeocodeTimeoutSec:  getEnvInt("GEOCODE_TIMEOUT_SEC", 10),
		GeocodeMaxAttempts: getEnvInt("GEOCODE_MAX_ATTEMPTS", 3),
		GeocodeBaseDelayMs: getEnvInt("GEOCODE_BASE_DELAY_MS", 2000),
		GeocodeMaxDelayMs:  getEnvInt("GEOCODE_MAX_DELAY_MS", 16000),
		Municipality:       getEnv("MUNICIPALITY", "Javea"),
		Province:           getEnv("PROVINCE", "Alicante"),
		Region:             getEnv("REGION", "Valencia"),
		Country:            getEnv("COUNTRY", "Spain"),
		AnchorFallback:     getEnvBool("GEOCODE_ANCHOR_FALLBACK", true),

		DedupMaxDistanceMeters: getEnvFloat("DEDUP_MAX_DISTANCE_M", 5),
		DedupSimilarity:        getEnvFloat("DEDUP_TITLE_SIMILARITY", 0.8),
		DedupPriceTolerance:    getEnvFloat("DEDUP_PRICE_TOLERANCE", 0.05),

		TranslateURL:        getEnv("TRANSLATE_URL", "https://libretranslate.com"),
		TranslateAPIKey:     getEnv("TRANSLATE_API_KEY", ""),
		TranslateSource:     getEnv("TRANSLATE_SOURCE", "en"),
		TranslateTargets:    getEnvList("TRANSLATE_TARGETS", []string{"es", "ru"}),
		TranslateIntervalMs: getEnvInt("TRANSLATE_INTERVAL_MS", 300),

		CSVOutputPath:     getEnv("CSV_OUTPUT_PATH", "./output/raw_listings.csv"),
		ScrapedJSONPath:   getEnv("SCRAPED_JSON_PATH", "./output/scraped-properties.json"),
		ProcessedJSONPath: getEnv("PROCESSED_JSON_PATH", "./output/processed-properties.json"),

		RevalidateURL:    getEnv("REVALIDATE_URL", ""),
		RevalidateSecret: getEnv("REVALIDATE_SECRET", ""),

		Verbose: getEnvBool("VERBOSE", false),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SearchURL is the first results page of the scrape source.
func (c *Config) SearchURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.SearchPath
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
