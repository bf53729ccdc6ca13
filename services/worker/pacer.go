package worker

import (
	"context"
	"time"
)

// Pacer decides how long the scan loop waits between units of work. Every
// wait returns early with the context's error when the context is cancelled.
type Pacer interface {
	// BetweenItems is consulted before each delivery after the first of a search
	BetweenItems(ctx context.Context) error
	// BetweenSearches is consulted before each search after the first of a cycle
	BetweenSearches(ctx context.Context) error
	// BetweenCycles is consulted after a full cycle in fixed-delay mode
	BetweenCycles(ctx context.Context) error
	// Backoff is consulted after the webhook reported a rate limit
	Backoff(ctx context.Context, retryAfter time.Duration) error
}

// FixedPacer waits constant delays and honors webhook Retry-After hints up
// to MaxBackoff.
type FixedPacer struct {
	ItemDelay   time.Duration
	SearchDelay time.Duration
	CycleDelay  time.Duration
	MaxBackoff  time.Duration
}

var _ Pacer = FixedPacer{}

// DefaultPacer returns the standard 1s / 2s / 60s pacing
func DefaultPacer() FixedPacer {
	return FixedPacer{
		ItemDelay:   time.Second,
		SearchDelay: 2 * time.Second,
		CycleDelay:  60 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// BetweenItems waits ItemDelay
func (p FixedPacer) BetweenItems(ctx context.Context) error {
	return sleep(ctx, p.ItemDelay)
}

// BetweenSearches waits SearchDelay
func (p FixedPacer) BetweenSearches(ctx context.Context) error {
	return sleep(ctx, p.SearchDelay)
}

// BetweenCycles waits CycleDelay
func (p FixedPacer) BetweenCycles(ctx context.Context) error {
	return sleep(ctx, p.CycleDelay)
}

// Backoff waits BackoffDuration(retryAfter)
func (p FixedPacer) Backoff(ctx context.Context, retryAfter time.Duration) error {
	return sleep(ctx, p.BackoffDuration(retryAfter))
}

// BackoffDuration bounds a Retry-After hint. Without a hint the item delay is
// used again.
func (p FixedPacer) BackoffDuration(retryAfter time.Duration) time.Duration {
	d := retryAfter
	if d <= 0 {
		d = p.ItemDelay
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
