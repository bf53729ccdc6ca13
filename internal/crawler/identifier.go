package crawler

import "regexp"

var itemIDRegex = regexp.MustCompile(`/items/(\d+)`)

// ExtractItemID returns the numeric listing id found after /items/ in link.
// Both tiers produce links of that shape, so the same listing maps to the same
// id whichever tier found it.
func ExtractItemID(link string) (string, bool) {
	m := itemIDRegex.FindStringSubmatch(link)
	if m == nil {
		return "", false
	}
	return m[1], true
}
