package search

import (
	"net/url"
	"strings"
)

// Catalog query parameter names
const (
	ParamSearchText = "search_text"
	ParamPriceFrom  = "price_from"
	ParamPriceTo    = "price_to"
	ParamSizeIDs    = "size_ids[]"
	ParamStatusIDs  = "status_ids[]"
	ParamCatalog    = "catalog[]"
	ParamOrder      = "order"
)

type param struct {
	key   string
	value string
}

// QueryBuilder maps a Spec onto a catalog locator.
type QueryBuilder struct {
	BaseURL string
}

// NewQueryBuilder creates a builder for the given bare catalog locator
func NewQueryBuilder(baseURL string) *QueryBuilder {
	return &QueryBuilder{BaseURL: baseURL}
}

// Build returns the locator for s. Multi-valued filters are always emitted as
// repeated key[]=value pairs, even with a single value, since the catalog does
// not accept the bare scalar form. Keys keep their literal brackets; values are
// percent-encoded. With no applicable filter the bare locator is returned.
func (b *QueryBuilder) Build(s Spec) string {
	params := b.params(s)
	if len(params) == 0 {
		return b.BaseURL
	}

	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p.key+"="+url.QueryEscape(p.value))
	}

	sep := "?"
	if strings.Contains(b.BaseURL, "?") {
		sep = "&"
	}
	return b.BaseURL + sep + strings.Join(parts, "&")
}

func (b *QueryBuilder) params(s Spec) []param {
	var params []param

	if kw := strings.TrimSpace(s.Keywords); kw != "" {
		params = append(params, param{ParamSearchText, kw})
	}
	// No check that the lower bound is below the upper one
	if s.PriceFrom != "" {
		params = append(params, param{ParamPriceFrom, string(s.PriceFrom)})
	}
	if s.PriceTo != "" {
		params = append(params, param{ParamPriceTo, string(s.PriceTo)})
	}
	for _, v := range s.Sizes {
		params = append(params, param{ParamSizeIDs, string(v)})
	}
	for _, v := range s.Status {
		params = append(params, param{ParamStatusIDs, string(v)})
	}
	for _, v := range s.Catalog {
		params = append(params, param{ParamCatalog, string(v)})
	}
	if order := strings.TrimSpace(s.Order); order != "" {
		params = append(params, param{ParamOrder, order})
	}

	return params
}
