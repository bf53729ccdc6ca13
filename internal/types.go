package internal

import (
	"sjsage522/listingwatcher/services/cache"
	"sjsage522/listingwatcher/services/publisher"
)

// Dependencies holds the optional infrastructure services. A nil Publisher
// disables the new-item event stream.
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}
