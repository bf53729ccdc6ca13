package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"sjsage522/listingwatcher/internal"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/novelty"
	"sjsage522/listingwatcher/internal/search"
	"sjsage522/listingwatcher/services/notifier"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogURL = "https://www.vinted.fr/catalog"

var queries = search.NewQueryBuilder(catalogURL)

func listing(id string) crawler.ItemRecord {
	return crawler.ItemRecord{
		Title:     "item " + id,
		Price:     "10 €",
		URL:       "https://www.vinted.fr/items/" + id,
		Brand:     crawler.UnknownBrand,
		Condition: crawler.Unspecified,
		Size:      crawler.Unspecified,
	}
}

func spec(name, keywords string) search.Spec {
	return search.Spec{Name: name, Keywords: keywords, WebhookURL: "https://discord.test/" + name}
}

type fixture struct {
	specs     *MockSpecSource
	extractor *MockExtractor
	notifier  *MockNotifier
	publisher *MockPublisher
	pacer     *recordingPacer
	seen      *novelty.SeenSet
	worker    *Worker
}

func newFixture(specs ...search.Spec) *fixture {
	f := &fixture{
		specs:     &MockSpecSource{specs: specs},
		extractor: NewMockExtractor(),
		notifier:  NewMockNotifier(),
		publisher: &MockPublisher{},
		pacer:     &recordingPacer{},
		seen:      novelty.NewSeenSet(),
	}
	f.worker = NewWorker(f.specs, queries, f.extractor, f.seen, f.notifier,
		internal.Dependencies{Publisher: f.publisher}, f.pacer)
	return f
}

func (f *fixture) page(s search.Spec, items ...crawler.ItemRecord) {
	f.extractor.results[queries.Build(s)] = items
}

// TestRunCycleDeliversNewItemsInOrder tests a full cycle over two searches
func TestRunCycleDeliversNewItemsInOrder(t *testing.T) {
	jeans, jackets := spec("jeans", "jean"), spec("jackets", "veste")
	f := newFixture(jeans, jackets)
	f.page(jeans, listing("1"), listing("2"), listing("3"))
	f.page(jackets, listing("4"))

	report := f.worker.RunCycle(context.Background())

	assert.False(t, report.Interrupted)
	assert.NotEmpty(t, report.ID)
	require.Len(t, report.Searches, 2)
	assert.Equal(t, 3, report.Searches[0].Delivered)
	assert.Equal(t, 1, report.Searches[1].Delivered)
	assert.Equal(t, 4, report.NewItems())

	assert.Equal(t, []string{
		"https://www.vinted.fr/items/1",
		"https://www.vinted.fr/items/2",
		"https://www.vinted.fr/items/3",
		"https://www.vinted.fr/items/4",
	}, f.notifier.urls())
	assert.Equal(t, "https://discord.test/jeans", f.notifier.sent[0].webhook)
	assert.Equal(t, "jackets", f.notifier.sent[3].search)

	// 1s between the three deliveries of the first search, 2s between searches
	assert.Equal(t, 2, f.pacer.items)
	assert.Equal(t, 1, f.pacer.searches)

	require.Len(t, f.publisher.events, 4)
	assert.Equal(t, "1", f.publisher.events[0].ItemID)
	assert.Equal(t, "delivered", f.publisher.events[0].Outcome)
	assert.Equal(t, report.ID, f.publisher.events[0].CycleID)
	assert.Equal(t, 1, f.publisher.trims)

	stats := f.worker.Stats()
	assert.Equal(t, int64(1), stats.CyclesStarted)
	assert.Equal(t, int64(1), stats.CyclesCompleted)
	assert.Equal(t, 4, stats.IdentifiersSeen)
	assert.Equal(t, int64(4), stats.Delivered)
}

// TestRunCycleIsIdempotent tests that a second cycle over the same page is silent
func TestRunCycleIsIdempotent(t *testing.T) {
	jeans := spec("jeans", "jean")
	f := newFixture(jeans)
	f.page(jeans, listing("1"), listing("2"))

	f.worker.RunCycle(context.Background())
	report := f.worker.RunCycle(context.Background())

	assert.Len(t, f.notifier.sent, 2)
	require.Len(t, report.Searches, 1)
	assert.Zero(t, report.Searches[0].New)
	assert.Equal(t, 2, report.Searches[0].AlreadySeen)
	assert.Equal(t, 2, f.specs.calls)
}

// TestRunCycleSharesSeenSetAcrossSearches tests that a listing found by two searches is sent once
func TestRunCycleSharesSeenSetAcrossSearches(t *testing.T) {
	a, b := spec("a", "robe"), spec("b", "robe longue")
	f := newFixture(a, b)
	f.page(a, listing("7"))
	f.page(b, listing("7"), listing("8"))

	f.worker.RunCycle(context.Background())

	assert.Equal(t, []string{
		"https://www.vinted.fr/items/7",
		"https://www.vinted.fr/items/8",
	}, f.notifier.urls())
}

// TestRunCycleSkipsSearchWithoutWebhook tests that searches without a target are not fetched
func TestRunCycleSkipsSearchWithoutWebhook(t *testing.T) {
	noTarget := search.Spec{Name: "draft", Keywords: "sac"}
	f := newFixture(noTarget)
	f.page(noTarget, listing("1"))

	report := f.worker.RunCycle(context.Background())

	require.Len(t, report.Searches, 1)
	assert.True(t, report.Searches[0].Skipped)
	assert.Empty(t, f.extractor.calls)
	assert.Empty(t, f.notifier.sent)
	assert.Zero(t, f.seen.Len())
}

// TestRunCycleContinuesAfterFetchFailure tests that a failed page only skips its own search
func TestRunCycleContinuesAfterFetchFailure(t *testing.T) {
	broken, ok := spec("broken", "x"), spec("ok", "y")
	f := newFixture(broken, ok)
	f.extractor.errs[queries.Build(broken)] = errors.New("connection refused")
	f.page(ok, listing("3"))

	report := f.worker.RunCycle(context.Background())

	require.Len(t, report.Searches, 2)
	assert.True(t, report.Searches[0].FetchFailed)
	assert.Equal(t, 1, report.Searches[1].Delivered)
	assert.Equal(t, int64(1), f.worker.Stats().FetchFailures)
	assert.Equal(t, int64(1), f.worker.Stats().CyclesCompleted)
}

// TestRunCycleCountsOutcomes tests delivery outcome bookkeeping and rate-limit backoff
func TestRunCycleCountsOutcomes(t *testing.T) {
	s := spec("s", "pull")
	f := newFixture(s)
	f.page(s, listing("1"), listing("2"), listing("3"))
	f.notifier.outcomes[listing("2").URL] = notifier.DeliveryResult{
		Outcome:    notifier.RateLimited,
		StatusCode: 429,
		RetryAfter: 4 * time.Second,
	}
	f.notifier.outcomes[listing("3").URL] = notifier.DeliveryResult{
		Outcome:    notifier.Failed,
		StatusCode: 500,
		Err:        errors.New("boom"),
	}

	report := f.worker.RunCycle(context.Background())

	sr := report.Searches[0]
	assert.Equal(t, 1, sr.Delivered)
	assert.Equal(t, 1, sr.RateLimited)
	assert.Equal(t, 1, sr.Failed)
	assert.Equal(t, []time.Duration{4 * time.Second}, f.pacer.backoffs)

	// items are seen once attempted, whatever the outcome
	assert.Equal(t, 3, f.seen.Len())

	stats := f.worker.Stats()
	assert.Equal(t, int64(1), stats.Delivered)
	assert.Equal(t, int64(1), stats.RateLimited)
	assert.Equal(t, int64(1), stats.Failed)

	require.Len(t, f.publisher.events, 3)
	assert.Equal(t, "rate_limited", f.publisher.events[1].Outcome)
	assert.Equal(t, "failed", f.publisher.events[2].Outcome)
}

// TestRunCycleWithoutSearches tests that an empty or broken document is not fatal mid-run
func TestRunCycleWithoutSearches(t *testing.T) {
	f := newFixture()
	f.specs.err = errors.New("searches.json: no such file")

	report := f.worker.RunCycle(context.Background())

	assert.Empty(t, report.Searches)
	assert.False(t, report.Interrupted)
	assert.Equal(t, int64(1), f.worker.Stats().CyclesCompleted)
}

// TestRunCycleStopsAfterCurrentDelivery tests cancellation between deliveries
func TestRunCycleStopsAfterCurrentDelivery(t *testing.T) {
	a, b := spec("a", "x"), spec("b", "y")
	f := newFixture(a, b)
	f.page(a, listing("1"), listing("2"))
	f.page(b, listing("3"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pacer.cancelOn = "item"
	f.pacer.cancelFunc = cancel

	report := f.worker.RunCycle(ctx)

	assert.True(t, report.Interrupted)
	assert.Equal(t, []string{"https://www.vinted.fr/items/1"}, f.notifier.urls())
	assert.Len(t, f.extractor.calls, 1)

	stats := f.worker.Stats()
	assert.Equal(t, int64(1), stats.CyclesStarted)
	assert.Zero(t, stats.CyclesCompleted)
	// streams are still trimmed on the way out
	assert.Equal(t, 1, f.publisher.trims)
}

// TestRunCycleInFlightCallsAreNotCancelled tests that a delivery started before shutdown completes
func TestRunCycleInFlightCallsAreNotCancelled(t *testing.T) {
	s := spec("s", "x")
	f := newFixture(s)
	f.page(s, listing("1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sendCtxErr error
	f.notifier.onSend = cancel
	report := f.worker.RunCycle(ctx)
	sendCtxErr = f.notifier.sent[0].ctxErr

	assert.NoError(t, sendCtxErr)
	assert.Equal(t, 1, report.Searches[0].Delivered)
	assert.True(t, report.Interrupted)
}

// TestRunCycleWithoutPublisher tests that the event stream is optional
func TestRunCycleWithoutPublisher(t *testing.T) {
	s := spec("s", "x")
	f := newFixture(s)
	f.page(s, listing("1"))
	w := NewWorker(f.specs, queries, f.extractor, nil, f.notifier, internal.Dependencies{}, f.pacer)

	report := w.RunCycle(context.Background())

	assert.Equal(t, 1, report.Searches[0].Delivered)
	assert.Empty(t, f.publisher.events)
}

// TestRunCyclePublishFailureIsNotFatal tests that stream errors do not affect delivery
func TestRunCyclePublishFailureIsNotFatal(t *testing.T) {
	s := spec("s", "x")
	f := newFixture(s)
	f.page(s, listing("1"), listing("2"))
	f.publisher.publishErr = errors.New("redis down")

	report := f.worker.RunCycle(context.Background())

	assert.Equal(t, 2, report.Searches[0].Delivered)
}

// TestStartStopsOnCancel tests the fixed-delay loop
func TestStartStopsOnCancel(t *testing.T) {
	s := spec("s", "x")
	f := newFixture(s)
	f.page(s, listing("1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.pacer.cancelOn = "cycle"
	f.pacer.cancelFunc = cancel

	done := make(chan struct{})
	go func() {
		f.worker.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Equal(t, 1, f.pacer.cycles)
	assert.Equal(t, int64(1), f.worker.Stats().CyclesCompleted)
}

// TestStartScheduledRunsImmediately tests the cron mode's first run and shutdown
func TestStartScheduledRunsImmediately(t *testing.T) {
	s := spec("s", "x")
	f := newFixture(s)
	f.page(s, listing("1"))

	ctx, cancel := context.WithCancel(context.Background())
	f.notifier.onSend = cancel

	errCh := make(chan error, 1)
	go func() {
		errCh <- f.worker.StartScheduled(ctx, "@every 1h")
	}()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("scheduler did not stop")
	}

	assert.Equal(t, int64(1), f.worker.Stats().CyclesStarted)
	assert.Len(t, f.notifier.sent, 1)
}

// TestStartScheduledRejectsBadSchedule tests schedule validation
func TestStartScheduledRejectsBadSchedule(t *testing.T) {
	f := newFixture()

	err := f.worker.StartScheduled(context.Background(), "every now and then")

	assert.Error(t, err)
	assert.Zero(t, f.worker.Stats().CyclesStarted)
}
