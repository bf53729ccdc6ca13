// Package search holds the user-defined search specifications, the document
// loader that refreshes them every cycle, and the catalog query builder.
package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is one user-defined search. It is re-read from the search document at
// the start of every cycle and never mutated in-process.
type Spec struct {
	Name       string `json:"name" yaml:"name"`
	Keywords   string `json:"keywords" yaml:"keywords"`
	PriceFrom  Value  `json:"price_from" yaml:"price_from"`
	PriceTo    Value  `json:"price_to" yaml:"price_to"`
	Sizes      Values `json:"sizes" yaml:"sizes"`
	Status     Values `json:"status" yaml:"status"`
	Catalog    Values `json:"catalog" yaml:"catalog"`
	Order      string `json:"order" yaml:"order"`
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

// DisplayName returns the name used in logs and message footers
func (s Spec) DisplayName() string {
	if strings.TrimSpace(s.Name) == "" {
		return "unnamed"
	}
	return s.Name
}

// HasWebhook reports whether the search has somewhere to deliver to
func (s Spec) HasWebhook() bool {
	return strings.TrimSpace(s.WebhookURL) != ""
}

// Sort orders understood by the catalog. Unknown tokens are passed through.
const (
	OrderNewestFirst    = "newest_first"
	OrderPriceLowToHigh = "price_low_to_high"
	OrderPriceHighToLow = "price_high_to_low"
	OrderRelevance      = "relevance"
)

// Value is a scalar filter value written in the document either as a number
// or as a string. The zero Value means "absent".
type Value string

// UnmarshalJSON accepts strings, numbers and null
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected a string or number, got %s", string(data))
	}
	*v = Value(formatNumber(n.String()))
	return nil
}

// UnmarshalYAML accepts any scalar node
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", node.Line)
	}
	if node.ShortTag() == "!!null" {
		*v = ""
		return nil
	}
	if tag := node.ShortTag(); tag == "!!float" || tag == "!!int" {
		*v = Value(formatNumber(node.Value))
		return nil
	}
	*v = Value(strings.TrimSpace(node.Value))
	return nil
}

// Values is a multi-valued filter. A single scalar in the document is read as
// a one-element list.
type Values []Value

// UnmarshalJSON accepts a list or a single scalar
func (vs *Values) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []Value
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*vs = compact(list)
		return nil
	}
	var one Value
	if err := one.UnmarshalJSON(data); err != nil {
		return err
	}
	*vs = compact([]Value{one})
	return nil
}

// UnmarshalYAML accepts a sequence or a single scalar
func (vs *Values) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var list []Value
		if err := node.Decode(&list); err != nil {
			return err
		}
		*vs = compact(list)
		return nil
	}
	var one Value
	if err := one.UnmarshalYAML(node); err != nil {
		return err
	}
	*vs = compact([]Value{one})
	return nil
}

func compact(list []Value) Values {
	out := make(Values, 0, len(list))
	for _, v := range list {
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// formatNumber renders integral numbers without a fractional part so that a
// document value of 206 or 206.0 both become "206".
func formatNumber(raw string) string {
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
