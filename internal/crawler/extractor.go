package crawler

import (
	"context"
	"io"
	"net/http"
	"time"

	"sjsage522/listingwatcher/logger"
	"sjsage522/listingwatcher/services/cache"
)

// DefaultMaxItems is how many listings of a page are considered
const DefaultMaxItems = 30

// Extractor fetches a catalog page and returns its listings
type Extractor interface {
	// Extract returns the page's items, or an error when the page could not be
	// fetched or parsed. An empty result is not an error.
	Extract(ctx context.Context, locator string) (*Result, error)
}

// PageExtractor runs its tiers in priority order over a fetched page
type PageExtractor struct {
	BaseCrawler
	Tiers    []Tier
	MaxItems int
	log      *logger.Logger
}

var _ Extractor = (*PageExtractor)(nil)

// NewPageExtractor creates the two-tier extractor: structured data first,
// heuristic card scan as fallback.
func NewPageExtractor(config ExtractorConfig, client *http.Client, cacheSvc cache.CacheService) *PageExtractor {
	maxItems := config.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	selectors := config.Selectors
	if selectors.Container == "" {
		selectors = DefaultHeuristicSelectors
	}

	e := &PageExtractor{
		BaseCrawler: BaseCrawler{
			BaseURL:   config.BaseURL,
			CacheKey:  config.CacheKey,
			CacheSvc:  cacheSvc,
			BlockTime: time.Duration(config.BlockTime) * time.Second,
			Client:    client,
		},
		MaxItems: maxItems,
		log:      logger.ForExtractor(),
	}
	e.Tiers = []Tier{
		StructuredTier{},
		HeuristicTier{Selectors: selectors, Resolve: e.ResolveURL},
	}
	return e
}

// Extract implements Extractor
func (e *PageExtractor) Extract(ctx context.Context, locator string) (*Result, error) {
	body, err := e.fetchWithCache(ctx, locator)
	if err != nil {
		return nil, err
	}
	return e.Parse(body)
}

// Parse runs the tiers over an already fetched page
func (e *PageExtractor) Parse(r io.Reader) (*Result, error) {
	doc, err := e.createDocument(r)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, tier := range e.Tiers {
		tr := tier.Extract(doc)
		result.Discarded += tr.Discarded
		if len(tr.Items) == 0 {
			continue
		}
		result.Items = tr.Items
		result.Tier = tier.Name()
		break
	}

	if e.MaxItems > 0 && len(result.Items) > e.MaxItems {
		result.Truncated = len(result.Items) - e.MaxItems
		result.Items = result.Items[:e.MaxItems]
	}

	if e.log != nil {
		e.log.Debug().
			Str("tier", result.Tier).
			Int("items", len(result.Items)).
			Int("discarded", result.Discarded).
			Int("truncated", result.Truncated).
			Msg("Page extracted")
	}

	return result, nil
}
