package crawler

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const itemListType = "ItemList"

// StructuredTier reads schema.org ItemList blocks embedded as JSON-LD.
// Condition and size are not part of that data and are always Unspecified.
type StructuredTier struct{}

// Name implements Tier
func (StructuredTier) Name() string { return "structured" }

type ldBlock struct {
	Type            json.RawMessage   `json:"@type"`
	ItemListElement []json.RawMessage `json:"itemListElement"`
}

type ldListEntry struct {
	Item *ldProduct `json:"item"`
}

type ldProduct struct {
	Name   interface{}     `json:"name"`
	URL    string          `json:"url"`
	Image  interface{}     `json:"image"`
	Offers json.RawMessage `json:"offers"`
	Brand  interface{}     `json:"brand"`
}

type ldOffer struct {
	Price interface{} `json:"price"`
}

// Extract implements Tier. A block that does not decode is skipped and
// counted; it never stops the remaining blocks from being read.
func (t StructuredTier) Extract(doc *goquery.Document) TierResult {
	var result TierResult

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := bytes.TrimSpace([]byte(s.Text()))
		if len(raw) == 0 {
			return
		}

		blocks, err := decodeBlocks(raw)
		if err != nil {
			result.Discarded++
			return
		}

		for _, block := range blocks {
			if !isItemList(block.Type) {
				continue
			}
			for _, rawEntry := range block.ItemListElement {
				item, ok := t.parseEntry(rawEntry)
				if !ok {
					result.Discarded++
					continue
				}
				result.Items = append(result.Items, item)
			}
		}
	})

	return result
}

func decodeBlocks(raw []byte) ([]ldBlock, error) {
	if raw[0] == '[' {
		var blocks []ldBlock
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return nil, err
		}
		return blocks, nil
	}
	var block ldBlock
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, err
	}
	return []ldBlock{block}, nil
}

func isItemList(raw json.RawMessage) bool {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single == itemListType
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		for _, t := range many {
			if t == itemListType {
				return true
			}
		}
	}
	return false
}

func (t StructuredTier) parseEntry(raw json.RawMessage) (ItemRecord, bool) {
	var entry ldListEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Item == nil {
		return ItemRecord{}, false
	}
	p := entry.Item

	title, _ := p.Name.(string)
	if strings.TrimSpace(title) == "" {
		title = Untitled
	}

	return ItemRecord{
		Title:     title,
		Price:     NormalizePrice(offerPrice(p.Offers)),
		URL:       strings.TrimSpace(p.URL),
		Image:     firstImage(p.Image),
		Brand:     brandName(p.Brand),
		Condition: Unspecified,
		Size:      Unspecified,
	}, true
}

// offerPrice returns the price of the offer, or of the first offer when the
// page lists several. Missing offers read as "0".
func offerPrice(raw json.RawMessage) interface{} {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "0"
	}
	if raw[0] == '[' {
		var offers []ldOffer
		if err := json.Unmarshal(raw, &offers); err != nil || len(offers) == 0 {
			return "0"
		}
		return orZero(offers[0].Price)
	}
	var offer ldOffer
	if err := json.Unmarshal(raw, &offer); err != nil {
		return "0"
	}
	return orZero(offer.Price)
}

func orZero(v interface{}) interface{} {
	if v == nil {
		return "0"
	}
	return v
}

func firstImage(v interface{}) string {
	switch img := v.(type) {
	case string:
		return img
	case []interface{}:
		for _, candidate := range img {
			if s := firstImage(candidate); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		if u, ok := img["url"].(string); ok {
			return u
		}
		if u, ok := img["contentUrl"].(string); ok {
			return u
		}
	}
	return ""
}

func brandName(v interface{}) string {
	brand, ok := v.(map[string]interface{})
	if !ok {
		return UnknownBrand
	}
	name, ok := brand["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return UnknownBrand
	}
	return name
}
