package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sjsage522/listingwatcher/internal"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/novelty"
	"sjsage522/listingwatcher/internal/search"
	"sjsage522/listingwatcher/logger"
	"sjsage522/listingwatcher/services/notifier"
	"sjsage522/listingwatcher/services/publisher"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// EventKey is the stream field new-item events are published under
const EventKey = "b64_listing"

// SpecSource supplies the search list at the start of every cycle
type SpecSource interface {
	Reload() ([]search.Spec, error)
}

// ItemEvent is published for every new item once its delivery was attempted
type ItemEvent struct {
	CycleID string             `json:"cycle_id"`
	Search  string             `json:"search"`
	ItemID  string             `json:"item_id"`
	Outcome string             `json:"outcome"`
	FoundAt time.Time          `json:"found_at"`
	Item    crawler.ItemRecord `json:"item"`
}

// Worker runs the scan loop: load searches, fetch each page, keep the new
// items and deliver them one by one. Cycles never overlap.
type Worker struct {
	specs     SpecSource
	queries   *search.QueryBuilder
	extractor crawler.Extractor
	seen      *novelty.SeenSet
	notifier  notifier.Notifier
	publisher publisher.Publisher
	pacer     Pacer
	logger    *logger.Logger
	now       func() time.Time

	cycleMu sync.Mutex
	stats   counters
}

// NewWorker creates a new worker. deps.Publisher may be nil.
func NewWorker(
	specs SpecSource,
	queries *search.QueryBuilder,
	extractor crawler.Extractor,
	seen *novelty.SeenSet,
	n notifier.Notifier,
	deps internal.Dependencies,
	pacer Pacer,
) *Worker {
	if seen == nil {
		seen = novelty.NewSeenSet()
	}
	if pacer == nil {
		pacer = DefaultPacer()
	}
	return &Worker{
		specs:     specs,
		queries:   queries,
		extractor: extractor,
		seen:      seen,
		notifier:  n,
		publisher: deps.Publisher,
		pacer:     pacer,
		logger:    logger.ForWorker(),
		now:       time.Now,
	}
}

// Start runs cycles separated by the pacer's cycle delay until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	for {
		start := time.Now()
		report := w.RunCycle(ctx)
		w.logger.Debug().
			Str("cycle_id", report.ID).
			Dur("elapsed", time.Since(start)).
			Msg("Cycle finished")

		if ctx.Err() != nil {
			return
		}
		if err := w.pacer.BetweenCycles(ctx); err != nil {
			return
		}
	}
}

// StartScheduled runs one cycle immediately and then one per tick of a cron
// schedule. A tick arriving while a cycle is still running is skipped. It
// blocks until ctx is cancelled and the running cycle has returned.
func (w *Worker) StartScheduled(ctx context.Context, schedule string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("parse schedule %q: %w", schedule, err)
	}

	cronLogger := logger.NewCronLogger(w.logger)
	c := cron.New(cron.WithLogger(cronLogger))
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(cron.FuncJob(func() {
		w.RunCycle(ctx)
	}))
	c.Schedule(sched, job)
	c.Start()
	w.logger.Info().Str("schedule", schedule).Msg("Scheduler started")

	// the immediate run is outside the scheduler's bookkeeping
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		job.Run()
	}()

	<-ctx.Done()
	<-c.Stop().Done()
	first.Wait()
	w.logger.Info().Msg("Scheduler stopped")
	return nil
}

// RunCycle processes every search once. Cancelling ctx stops the cycle after
// the current fetch or delivery; those calls are not themselves cancelled.
func (w *Worker) RunCycle(ctx context.Context) CycleReport {
	w.cycleMu.Lock()
	defer w.cycleMu.Unlock()

	report := CycleReport{ID: uuid.NewString()}
	log := w.logger.WithStr("cycle_id", report.ID)
	w.stats.cyclesStarted.Add(1)

	specs, err := w.specs.Reload()
	if err != nil {
		log.Warn().Err(err).Int("searches", len(specs)).Msg("Failed to reload searches")
	}
	if len(specs) == 0 {
		log.Warn().Msg("No searches configured, nothing to do")
	}

	for i, spec := range specs {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		if i > 0 {
			if err := w.pacer.BetweenSearches(ctx); err != nil {
				report.Interrupted = true
				break
			}
		}
		sr := w.processSearch(ctx, report.ID, spec)
		report.Searches = append(report.Searches, sr)
		if sr.Interrupted || ctx.Err() != nil {
			report.Interrupted = true
			break
		}
	}

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(context.WithoutCancel(ctx)); err != nil {
			logger.ForPublisher().Warn().Err(err).Msg("Failed to trim streams")
		}
	}

	if !report.Interrupted {
		w.stats.cyclesCompleted.Add(1)
	}

	log.Info().
		Int("searches", len(report.Searches)).
		Int("new_items", report.NewItems()).
		Int("seen_total", w.seen.Len()).
		Bool("interrupted", report.Interrupted).
		Msg("Scan cycle done")

	return report
}

// processSearch fetches one search page and delivers its new items in page order
func (w *Worker) processSearch(ctx context.Context, cycleID string, spec search.Spec) SearchReport {
	name := spec.DisplayName()
	report := SearchReport{Search: name}
	log := logger.ForSearch(name).WithStr("cycle_id", cycleID)

	if !spec.HasWebhook() {
		log.Warn().Msg("Search has no webhook target, skipping")
		report.Skipped = true
		return report
	}

	locator := w.queries.Build(spec)
	log.Debug().Str("url", locator).Msg("Fetching listing page")

	result, err := w.extractor.Extract(context.WithoutCancel(ctx), locator)
	if err != nil {
		w.stats.fetchFailures.Add(1)
		report.FetchFailed = true
		log.WithError(err).Error().Str("url", locator).Msg("Failed to fetch listing page")
		return report
	}

	filtered := novelty.Filter(w.seen, result.Items)
	report.Tier = result.Tier
	report.Found = len(result.Items)
	report.Discarded = result.Discarded
	report.New = len(filtered.New)
	report.AlreadySeen = filtered.Seen
	report.Unidentified = filtered.Unidentified

	for i, item := range filtered.New {
		if i > 0 {
			if err := w.pacer.BetweenItems(ctx); err != nil {
				report.Interrupted = true
				break
			}
		}

		res := w.notifier.Send(context.WithoutCancel(ctx), spec.WebhookURL, item, name)
		switch res.Outcome {
		case notifier.Delivered:
			report.Delivered++
			w.stats.delivered.Add(1)
		case notifier.RateLimited:
			report.RateLimited++
			w.stats.rateLimited.Add(1)
		default:
			report.Failed++
			w.stats.failed.Add(1)
			log.WithError(res.Err).Warn().Str("url", item.URL).Msg("Delivery failed")
		}

		w.publish(ctx, cycleID, name, item, res.Outcome)

		if res.Outcome == notifier.RateLimited {
			if err := w.pacer.Backoff(ctx, res.RetryAfter); err != nil {
				report.Interrupted = true
				break
			}
		}
	}

	log.Info().
		Str("tier", report.Tier).
		Int("found", report.Found).
		Int("new", report.New).
		Int("already_seen", report.AlreadySeen).
		Int("unidentified", report.Unidentified).
		Int("delivered", report.Delivered).
		Int("failed", report.Failed).
		Int("rate_limited", report.RateLimited).
		Msg("Search done")

	return report
}

// publish appends a new-item event to the stream; failures are only logged
func (w *Worker) publish(ctx context.Context, cycleID, searchName string, item crawler.ItemRecord, outcome notifier.Outcome) {
	if w.publisher == nil {
		return
	}
	id, _ := item.ID()
	data, err := json.Marshal(ItemEvent{
		CycleID: cycleID,
		Search:  searchName,
		ItemID:  id,
		Outcome: outcome.String(),
		FoundAt: w.now().UTC(),
		Item:    item,
	})
	if err != nil {
		logger.ForPublisher().Error().Err(err).Msg("Failed to encode item event")
		return
	}
	if err := w.publisher.Publish(context.WithoutCancel(ctx), EventKey, data); err != nil {
		logger.ForPublisher().Warn().Err(err).Str("item_id", id).Msg("Failed to publish item event")
	}
}

// Stats returns a snapshot of the cumulative counters
func (w *Worker) Stats() Stats {
	return Stats{
		CyclesStarted:   w.stats.cyclesStarted.Load(),
		CyclesCompleted: w.stats.cyclesCompleted.Load(),
		IdentifiersSeen: w.seen.Len(),
		Delivered:       w.stats.delivered.Load(),
		Failed:          w.stats.failed.Load(),
		RateLimited:     w.stats.rateLimited.Load(),
		FetchFailures:   w.stats.fetchFailures.Load(),
	}
}
