package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	apperrors "sjsage522/listingwatcher/pkg/errors"

	"github.com/robfig/cron/v3"
)

// Reload failure policies for a search document that disappears or breaks mid-run.
const (
	ReloadKeepPrevious = "keep"
	ReloadTreatEmpty   = "empty"
)

// Config represents the application configuration
type Config struct {
	// Search documents
	SearchesFile        string
	ReloadFailurePolicy string

	// Listing source
	CatalogURL     string
	FetchTimeout   time.Duration
	MaxItems       int
	RateLimitBlock time.Duration // zero: a 429 only fails that search for the cycle

	// Pacing
	ScanInterval      time.Duration
	SearchDelay       time.Duration
	ItemDelay         time.Duration
	ScanSchedule      string
	MaxWebhookBackoff time.Duration

	// Webhook
	WebhookTimeout   time.Duration
	WebhookUsername  string
	WebhookAvatarURL string

	// Memcache configuration
	MemcacheAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		SearchesFile:         getEnv("SEARCHES_FILE", "searches.json"),
		ReloadFailurePolicy:  getEnv("RELOAD_FAILURE_POLICY", ReloadKeepPrevious),
		CatalogURL:           getEnv("CATALOG_URL", "https://www.vinted.fr/catalog"),
		FetchTimeout:         getSeconds("FETCH_TIMEOUT_SECONDS", 15),
		MaxItems:             getInt("MAX_ITEMS", 30),
		RateLimitBlock:       getSeconds("RATE_LIMIT_BLOCK_SECONDS", 0),
		ScanInterval:         getSeconds("SCAN_INTERVAL_SECONDS", 60),
		SearchDelay:          getMillis("SEARCH_DELAY_MS", 2000),
		ItemDelay:            getMillis("ITEM_DELAY_MS", 1000),
		ScanSchedule:         getEnv("SCAN_SCHEDULE", ""),
		MaxWebhookBackoff:    getSeconds("RATE_LIMIT_MAX_BACKOFF_SECONDS", 30),
		WebhookTimeout:       getSeconds("WEBHOOK_TIMEOUT_SECONDS", 10),
		WebhookUsername:      getEnv("WEBHOOK_USERNAME", "Vinted Scraper"),
		WebhookAvatarURL:     getEnv("WEBHOOK_AVATAR_URL", "https://images.vinted.net/assets/icon-192x192.png"),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "listings"),
		RedisStreamCount:     getInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getInt("REDIS_STREAM_MAX_LENGTH", 1000),
		Environment:          getEnv("WATCHER_ENVIRONMENT", "development"),
	}
}

// Validate checks the values that would otherwise make the scan loop misbehave
func (c *Config) Validate() error {
	if c.SearchesFile == "" {
		return apperrors.NewConfiguration("SEARCHES_FILE", "must not be empty", nil)
	}
	u, err := url.Parse(c.CatalogURL)
	if err != nil {
		return apperrors.NewConfiguration("CATALOG_URL", "invalid URL", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return apperrors.NewConfiguration("CATALOG_URL", "must be an absolute URL", nil)
	}
	if c.FetchTimeout <= 0 {
		return apperrors.NewConfiguration("FETCH_TIMEOUT_SECONDS", "must be positive", nil)
	}
	if c.WebhookTimeout <= 0 {
		return apperrors.NewConfiguration("WEBHOOK_TIMEOUT_SECONDS", "must be positive", nil)
	}
	if c.MaxItems < 1 {
		return apperrors.NewConfiguration("MAX_ITEMS", "must be at least 1", nil)
	}
	if c.ScanInterval < 0 || c.SearchDelay < 0 || c.ItemDelay < 0 {
		return apperrors.NewConfiguration("pacing", "delays must not be negative", nil)
	}
	switch c.ReloadFailurePolicy {
	case ReloadKeepPrevious, ReloadTreatEmpty:
	default:
		return apperrors.NewConfiguration("RELOAD_FAILURE_POLICY", "must be \"keep\" or \"empty\", got "+strconv.Quote(c.ReloadFailurePolicy), nil)
	}
	if c.ScanSchedule != "" {
		if _, err := cron.ParseStandard(c.ScanSchedule); err != nil {
			return apperrors.NewConfiguration("SCAN_SCHEDULE", "invalid cron expression", err)
		}
	}
	if c.RedisAddr != "" && c.RedisStreamCount < 1 {
		return apperrors.NewConfiguration("REDIS_STREAM_COUNT", "must be at least 1", nil)
	}
	return nil
}

// ItemBaseURL returns the scheme and host of the catalog, used to resolve relative item links
func (c *Config) ItemBaseURL() string {
	u, err := url.Parse(c.CatalogURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}

func getMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Millisecond
}
