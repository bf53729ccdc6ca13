package worker

import "sync/atomic"

// Stats are cumulative counters over the life of the process
type Stats struct {
	CyclesStarted   int64
	CyclesCompleted int64
	IdentifiersSeen int
	Delivered       int64
	Failed          int64
	RateLimited     int64
	FetchFailures   int64
}

type counters struct {
	cyclesStarted   atomic.Int64
	cyclesCompleted atomic.Int64
	delivered       atomic.Int64
	failed          atomic.Int64
	rateLimited     atomic.Int64
	fetchFailures   atomic.Int64
}

// SearchReport is what one search produced in one cycle
type SearchReport struct {
	Search       string
	Skipped      bool
	FetchFailed  bool
	Tier         string
	Found        int
	New          int
	AlreadySeen  int
	Unidentified int
	Discarded    int
	Delivered    int
	Failed       int
	RateLimited  int
	Interrupted  bool
}

// CycleReport summarizes one pass over all searches
type CycleReport struct {
	ID          string
	Searches    []SearchReport
	Interrupted bool
}

// NewItems returns how many new items the cycle found across its searches
func (r CycleReport) NewItems() int {
	n := 0
	for _, s := range r.Searches {
		n += s.New
	}
	return n
}
