// Package novelty decides which extracted listings have not been reported yet.
package novelty

import (
	"sync"

	"sjsage522/listingwatcher/internal/crawler"
)

// SeenSet holds the ids of every listing already considered. It only grows
// and lives for the lifetime of the process.
type SeenSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewSeenSet creates an empty set
func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// Contains reports whether id has been recorded
func (s *SeenSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Add records id and reports whether it was new
func (s *SeenSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

// Len returns the number of recorded ids
func (s *SeenSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// FilterResult splits a batch of extracted items
type FilterResult struct {
	// New holds the first occurrence of each unseen id, in input order
	New []crawler.ItemRecord
	// Seen counts items whose id was already recorded, including repeats
	// within the batch
	Seen int
	// Unidentified counts items without an id in their link
	Unidentified int
}

// Filter returns the items of a batch whose id was never seen and records
// those ids. Items without an id are dropped. Filtering the same batch twice
// yields no new items the second time.
func Filter(seen *SeenSet, items []crawler.ItemRecord) FilterResult {
	var result FilterResult
	for _, item := range items {
		id, ok := item.ID()
		if !ok {
			result.Unidentified++
			continue
		}
		if !seen.Add(id) {
			result.Seen++
			continue
		}
		result.New = append(result.New, item)
	}
	return result
}
