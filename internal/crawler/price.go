package crawler

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

var priceDigitsRegex = regexp.MustCompile(`\d+[,.]?\d*`)

// NormalizePrice formats a raw offer price as "<number> €". Numbers are
// printed as-is; text is reduced to its first run of digits with an optional
// comma or dot separator. Anything without digits becomes "0 €".
func NormalizePrice(raw interface{}) string {
	switch v := raw.(type) {
	case nil:
		return ZeroPrice
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64) + " €"
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32) + " €"
	case int:
		return strconv.Itoa(v) + " €"
	case int64:
		return strconv.FormatInt(v, 10) + " €"
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64) + " €"
		}
		return normalizePriceText(v.String())
	case string:
		return normalizePriceText(v)
	default:
		return normalizePriceText(fmt.Sprint(v))
	}
}

func normalizePriceText(s string) string {
	digits := priceDigitsRegex.FindString(s)
	if digits == "" {
		return ZeroPrice
	}
	return digits + " €"
}
