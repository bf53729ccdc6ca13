package crawler

import "github.com/PuerkitoBio/goquery"

// Sentinels for attributes a tier cannot derive
const (
	UnknownBrand = "unknown"
	Unspecified  = "unspecified"
	Untitled     = "untitled"
	ZeroPrice    = "0 €"
)

// ItemRecord is one listing extracted from a catalog page
type ItemRecord struct {
	Title     string `json:"title"`
	Price     string `json:"price"`
	URL       string `json:"url"`
	Image     string `json:"image,omitempty"`
	Brand     string `json:"brand"`
	Condition string `json:"condition"`
	Size      string `json:"size"`
}

// ID returns the item identifier derived from the record's URL
func (r ItemRecord) ID() (string, bool) {
	return ExtractItemID(r.URL)
}

// Tier is one extraction strategy. Tiers are tried in order and the first one
// producing at least one item wins.
type Tier interface {
	// Name identifies the tier in logs and results
	Name() string

	// Extract returns the items found on the page in page order
	Extract(doc *goquery.Document) TierResult
}

// TierResult is what a single tier produced for one page
type TierResult struct {
	Items []ItemRecord
	// Discarded counts blocks or cards the tier had to skip
	Discarded int
}

// Result is the outcome of a successful page extraction. An empty Items list
// means the page legitimately had no listings.
type Result struct {
	Items     []ItemRecord
	Tier      string
	Discarded int
	Truncated int
}

// HeuristicSelectors contains CSS selectors for listing cards in raw markup
type HeuristicSelectors struct {
	Container string
	Link      string
	Price     string
	Image     string
}

// DefaultHeuristicSelectors match the catalog's feed grid cards
var DefaultHeuristicSelectors = HeuristicSelectors{
	Container: `div[class*="feed-grid__item"], div[class*="new-item-box"]`,
	Link:      `a[href*="/items/"]`,
	Price:     `span[class*="price"], span[class*="Text_text"]`,
	Image:     `img`,
}

// ExtractorConfig contains configuration for a page extractor
type ExtractorConfig struct {
	BaseURL   string
	CacheKey  string
	BlockTime int
	MaxItems  int
	Selectors HeuristicSelectors
}
