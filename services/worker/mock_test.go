package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/internal/search"
	"sjsage522/listingwatcher/services/notifier"
	"sjsage522/listingwatcher/services/publisher"
)

// MockSpecSource returns a fixed search list
type MockSpecSource struct {
	specs []search.Spec
	err   error
	calls int
}

func (m *MockSpecSource) Reload() ([]search.Spec, error) {
	m.calls++
	return m.specs, m.err
}

// MockExtractor returns canned results keyed by locator
type MockExtractor struct {
	mu      sync.Mutex
	results map[string][]crawler.ItemRecord
	errs    map[string]error
	calls   []string
}

var _ crawler.Extractor = (*MockExtractor)(nil)

func NewMockExtractor() *MockExtractor {
	return &MockExtractor{
		results: make(map[string][]crawler.ItemRecord),
		errs:    make(map[string]error),
	}
}

func (m *MockExtractor) Extract(ctx context.Context, locator string) (*crawler.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, locator)
	if err, ok := m.errs[locator]; ok {
		return nil, err
	}
	return &crawler.Result{Items: m.results[locator], Tier: "structured"}, nil
}

type sentMessage struct {
	webhook string
	itemURL string
	search  string
	ctxErr  error
}

// MockNotifier records deliveries and answers with a scripted outcome
type MockNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	outcomes map[string]notifier.DeliveryResult
	onSend   func()
}

var _ notifier.Notifier = (*MockNotifier)(nil)

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{outcomes: make(map[string]notifier.DeliveryResult)}
}

func (m *MockNotifier) Send(ctx context.Context, webhookURL string, item crawler.ItemRecord, searchName string) notifier.DeliveryResult {
	m.mu.Lock()
	m.sent = append(m.sent, sentMessage{webhook: webhookURL, itemURL: item.URL, search: searchName, ctxErr: ctx.Err()})
	onSend := m.onSend
	result, ok := m.outcomes[item.URL]
	m.mu.Unlock()

	if onSend != nil {
		onSend()
	}
	if !ok {
		return notifier.DeliveryResult{Outcome: notifier.Delivered, StatusCode: 204}
	}
	return result
}

func (m *MockNotifier) urls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var urls []string
	for _, s := range m.sent {
		urls = append(urls, s.itemURL)
	}
	return urls
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu         sync.Mutex
	events     []ItemEvent
	trims      int
	publishErr error
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	if key != EventKey {
		return errors.New("unexpected key " + key)
	}
	var event ItemEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// recordingPacer never sleeps; it counts consultations and can cancel the
// loop at a chosen point
type recordingPacer struct {
	mu         sync.Mutex
	items      int
	searches   int
	cycles     int
	backoffs   []time.Duration
	cancelOn   string
	cancelFunc context.CancelFunc
}

func (p *recordingPacer) hit(ctx context.Context, kind string) error {
	if p.cancelOn == kind && p.cancelFunc != nil {
		p.cancelFunc()
	}
	return ctx.Err()
}

func (p *recordingPacer) BetweenItems(ctx context.Context) error {
	p.mu.Lock()
	p.items++
	p.mu.Unlock()
	return p.hit(ctx, "item")
}

func (p *recordingPacer) BetweenSearches(ctx context.Context) error {
	p.mu.Lock()
	p.searches++
	p.mu.Unlock()
	return p.hit(ctx, "search")
}

func (p *recordingPacer) BetweenCycles(ctx context.Context) error {
	p.mu.Lock()
	p.cycles++
	p.mu.Unlock()
	return p.hit(ctx, "cycle")
}

func (p *recordingPacer) Backoff(ctx context.Context, retryAfter time.Duration) error {
	p.mu.Lock()
	p.backoffs = append(p.backoffs, retryAfter)
	p.mu.Unlock()
	return p.hit(ctx, "backoff")
}
