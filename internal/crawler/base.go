package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
	"sjsage522/listingwatcher/services/cache"

	"github.com/PuerkitoBio/goquery"
)

// BaseCrawler provides fetching, rate-limit blocking and document parsing
type BaseCrawler struct {
	BaseURL   string
	CacheKey  string
	CacheSvc  cache.CacheService
	BlockTime time.Duration
	Client    *http.Client
}

// fetchWithCache fetches a URL unless the listing source recently rate limited
// us. With a positive BlockTime a rate limit answer blocks further fetches for
// BlockTime (or the Retry-After hint when longer). With BlockTime zero nothing
// is stored and the 429 only fails the current fetch.
func (c *BaseCrawler) fetchWithCache(ctx context.Context, pageURL string) (io.Reader, error) {
	if c.CacheSvc != nil && c.CacheKey != "" {
		if until, err := c.CacheSvc.Get(c.CacheKey); err == nil {
			return nil, apperrors.NewRateLimit(pageURL, remaining(until))
		}
	}

	client := c.Client
	if client == nil {
		client = helpers.NewClient(15 * time.Second)
	}

	body, err := helpers.FetchWithBrowserHeaders(ctx, client, pageURL)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrorTypeRateLimit) {
			c.block(apperrors.RetryAfter(err))
		}
		return nil, err
	}

	return body, nil
}

func (c *BaseCrawler) block(retryAfter time.Duration) {
	if c.CacheSvc == nil || c.CacheKey == "" || c.BlockTime <= 0 {
		return
	}
	d := max(c.BlockTime, retryAfter)
	until := strconv.FormatInt(time.Now().Add(d).Unix(), 10)
	if err := c.CacheSvc.Set(c.CacheKey, []byte(until), d); err != nil {
		logger.ForCache().Warn().Err(err).Str("key", c.CacheKey).Msg("Failed to store rate limit block")
		return
	}
	logger.ForExtractor().Warn().
		Dur("block", d).
		Msg("Listing source rate limited us, pausing fetches")
}

func remaining(until []byte) time.Duration {
	ts, err := strconv.ParseInt(strings.TrimSpace(string(until)), 10, 64)
	if err != nil {
		return 0
	}
	d := time.Until(time.Unix(ts, 0))
	if d < 0 {
		return 0
	}
	return d
}

// createDocument creates a goquery document from a reader
func (c *BaseCrawler) createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, apperrors.NewParsing(c.BaseURL, "failed to parse HTML", err)
	}
	return doc, nil
}

// ResolveURL resolves a possibly relative link against BaseURL
func (c *BaseCrawler) ResolveURL(link string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", link, err)
	}
	if ref.IsAbs() || c.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", c.BaseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}
