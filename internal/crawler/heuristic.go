package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HeuristicTier scans listing cards in the page markup. It only knows title,
// price, link and image; brand, condition and size keep their sentinels.
type HeuristicTier struct {
	Selectors HeuristicSelectors
	Resolve   func(link string) (string, error)
}

// Name implements Tier
func (HeuristicTier) Name() string { return "heuristic" }

// Extract implements Tier. Every matching container is a card, except one
// whose nested matching containers carry item links: those inner cards are
// read instead. A link already emitted is not emitted twice. Containers
// without an item link are counted as discarded unless they sit inside
// another matching container.
func (t HeuristicTier) Extract(doc *goquery.Document) TierResult {
	var result TierResult
	seen := make(map[string]struct{})

	doc.Find(t.Selectors.Container).Each(func(_ int, s *goquery.Selection) {
		if s.Find(t.Selectors.Container).Find(t.Selectors.Link).Length() > 0 {
			return
		}

		item, ok := t.processCard(s)
		if !ok {
			if s.ParentsFiltered(t.Selectors.Container).Length() == 0 {
				result.Discarded++
			}
			return
		}
		if _, dup := seen[item.URL]; dup {
			return
		}
		seen[item.URL] = struct{}{}
		result.Items = append(result.Items, item)
	})

	return result
}

// processCard extracts a single card; cards without an item link are skipped
func (t HeuristicTier) processCard(s *goquery.Selection) (ItemRecord, bool) {
	linkSel := s.Find(t.Selectors.Link).First()
	if linkSel.Length() == 0 {
		return ItemRecord{}, false
	}

	href, exists := linkSel.Attr("href")
	if !exists || strings.TrimSpace(href) == "" {
		return ItemRecord{}, false
	}

	link := strings.TrimSpace(href)
	if t.Resolve != nil {
		resolved, err := t.Resolve(link)
		if err != nil {
			return ItemRecord{}, false
		}
		link = resolved
	}

	title := strings.TrimSpace(linkSel.AttrOr("title", ""))
	if title == "" {
		title = Untitled
	}

	price := ZeroPrice
	if priceSel := s.Find(t.Selectors.Price).First(); priceSel.Length() > 0 {
		if text := strings.TrimSpace(priceSel.Text()); text != "" {
			price = text
		}
	}

	var image string
	if imgSel := s.Find(t.Selectors.Image).First(); imgSel.Length() > 0 {
		image = strings.TrimSpace(imgSel.AttrOr("src", ""))
	}

	return ItemRecord{
		Title:     title,
		Price:     price,
		URL:       link,
		Image:     image,
		Brand:     UnknownBrand,
		Condition: Unspecified,
		Size:      Unspecified,
	}, true
}
