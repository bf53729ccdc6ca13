package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sjsage522/listingwatcher/config"
	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/novelty"
	"sjsage522/listingwatcher/internal/search"
	"sjsage522/listingwatcher/logger"
	"sjsage522/listingwatcher/services/cache"
	"sjsage522/listingwatcher/services/notifier"
	"sjsage522/listingwatcher/services/publisher"
	"sjsage522/listingwatcher/services/worker"

	"github.com/joho/godotenv"
)

// rateLimitCacheKey marks the listing source as rate limited
const rateLimitCacheKey = "listingwatcher:catalog_rate_limited"

func main() {
	// Load environment variables; a missing .env is fine
	_ = godotenv.Load()

	// Initialize logger first
	logger.Init()

	os.Exit(run(logger.Default))
}

// run wires the watcher and blocks until it is interrupted. It returns the
// process exit status.
func run(log *logger.Logger) int {
	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 1
	}

	loader := search.NewLoader(cfg.SearchesFile, search.ReloadPolicy(cfg.ReloadFailurePolicy))
	specs, err := loader.Load()
	if err != nil {
		log.Error().Err(err).Str("file", cfg.SearchesFile).Msg("Failed to load searches")
		return 1
	}
	if len(specs) == 0 {
		log.Error().Str("file", cfg.SearchesFile).Msg("No searches configured")
		return 1
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("searches", len(specs)).
		Dur("scan_interval", cfg.ScanInterval).
		Str("schedule", cfg.ScanSchedule).
		Msg("Starting listing watcher")

	// Cancel on SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := initializeServices(ctx, cfg)
	defer cleanup(deps)

	extractor := crawler.NewPageExtractor(crawler.ExtractorConfig{
		BaseURL:   cfg.ItemBaseURL(),
		CacheKey:  rateLimitCacheKey,
		BlockTime: int(cfg.RateLimitBlock / time.Second),
		MaxItems:  cfg.MaxItems,
	}, helpers.NewClient(cfg.FetchTimeout), deps.Cache)

	webhook := notifier.NewWebhookNotifier(
		helpers.NewClient(cfg.WebhookTimeout),
		cfg.WebhookUsername,
		cfg.WebhookAvatarURL,
	)

	pacer := worker.FixedPacer{
		ItemDelay:   cfg.ItemDelay,
		SearchDelay: cfg.SearchDelay,
		CycleDelay:  cfg.ScanInterval,
		MaxBackoff:  cfg.MaxWebhookBackoff,
	}

	w := worker.NewWorker(
		loader,
		search.NewQueryBuilder(cfg.CatalogURL),
		extractor,
		novelty.NewSeenSet(),
		webhook,
		*deps,
		pacer,
	)

	if cfg.ScanSchedule != "" {
		if err := w.StartScheduled(ctx, cfg.ScanSchedule); err != nil {
			log.Error().Err(err).Msg("Failed to start scheduler")
			return 1
		}
	} else {
		w.Start(ctx)
	}

	// Graceful shutdown
	stats := w.Stats()
	log.Info().
		Int64("cycles_started", stats.CyclesStarted).
		Int64("cycles_completed", stats.CyclesCompleted).
		Int("identifiers_seen", stats.IdentifiersSeen).
		Int64("delivered", stats.Delivered).
		Int64("failed", stats.Failed).
		Int64("rate_limited", stats.RateLimited).
		Int64("fetch_failures", stats.FetchFailures).
		Msg("Listing watcher stopped")

	return 0
}

// initializeServices connects the optional infrastructure. Nothing here is
// required: without memcached the rate-limit block lives in process memory,
// and without Redis no events are published.
func initializeServices(ctx context.Context, cfg *config.Config) *internal.Dependencies {
	deps := &internal.Dependencies{}

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Memcache unavailable, using in-process cache")
		} else {
			deps.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryService()
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := redisPublisher.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Redis unavailable, item events disabled")
			_ = redisPublisher.Close()
		} else {
			deps.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return deps
}

// cleanup releases the services
func cleanup(deps *internal.Dependencies) {
	if deps.Publisher != nil {
		if err := deps.Publisher.Close(); err != nil {
			logger.LogError("publisher", err, "Failed to close publisher")
		}
	}
}
