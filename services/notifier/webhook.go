package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sjsage522/listingwatcher/helpers"
	"sjsage522/listingwatcher/internal/crawler"
	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// Outcome classifies a webhook delivery
type Outcome int

const (
	// Delivered means the sink accepted the message
	Delivered Outcome = iota
	// RateLimited means the sink asked us to slow down
	RateLimited
	// Failed covers every other status and transport failures
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case RateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// DeliveryResult is the tagged result of one delivery
type DeliveryResult struct {
	Outcome    Outcome
	StatusCode int
	// RetryAfter is the sink's backoff hint; only set when RateLimited
	RetryAfter time.Duration
	// Err describes why the delivery did not succeed
	Err error
}

// OK reports whether the message was delivered
func (r DeliveryResult) OK() bool { return r.Outcome == Delivered }

// Notifier delivers one item to a webhook target
type Notifier interface {
	Send(ctx context.Context, webhookURL string, item crawler.ItemRecord, searchName string) DeliveryResult
}

// WebhookNotifier posts Discord-compatible messages
type WebhookNotifier struct {
	client    *http.Client
	username  string
	avatarURL string
	now       func() time.Time
	log       *logger.Logger
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates a notifier posting with a fixed sender identity
func NewWebhookNotifier(client *http.Client, username, avatarURL string) *WebhookNotifier {
	if client == nil {
		client = helpers.NewClient(10 * time.Second)
	}
	return &WebhookNotifier{
		client:    client,
		username:  username,
		avatarURL: avatarURL,
		now:       time.Now,
		log:       logger.ForNotifier(),
	}
}

// BuildPayload returns the full message for an item
func (n *WebhookNotifier) BuildPayload(item crawler.ItemRecord, searchName string) Payload {
	return Payload{
		Username:  n.username,
		AvatarURL: n.avatarURL,
		Embeds:    []Embed{BuildEmbed(item, searchName, n.now())},
	}
}

// Send implements Notifier
func (n *WebhookNotifier) Send(ctx context.Context, webhookURL string, item crawler.ItemRecord, searchName string) DeliveryResult {
	body, err := json.Marshal(n.BuildPayload(item, searchName))
	if err != nil {
		return failed(0, apperrors.NewDelivery(searchName, "failed to encode message", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return failed(0, apperrors.NewDelivery(searchName, "invalid webhook target", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return failed(0, apperrors.NewDelivery(searchName, "webhook request failed", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return DeliveryResult{Outcome: Delivered, StatusCode: resp.StatusCode}

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := helpers.ParseRetryAfter(resp.Header.Get("Retry-After"))
		if retryAfter == 0 {
			retryAfter = bodyRetryAfter(resp.Body)
		}
		n.log.Warn().
			Str("search", searchName).
			Dur("retry_after", retryAfter).
			Msg("Webhook rate limited, slowing down")
		e := apperrors.NewRateLimit(searchName, retryAfter)
		e.StatusCode = resp.StatusCode
		return DeliveryResult{
			Outcome:    RateLimited,
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
			Err:        e,
		}

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		n.log.Warn().
			Str("search", searchName).
			Str("status", helpers.DescribeStatus(resp.StatusCode)).
			Msg("Webhook rejected message")
		e := apperrors.NewDelivery(searchName, fmt.Sprintf("unexpected status %s", helpers.DescribeStatus(resp.StatusCode)), nil)
		e.StatusCode = resp.StatusCode
		return failed(resp.StatusCode, e)
	}
}

func failed(status int, err error) DeliveryResult {
	return DeliveryResult{Outcome: Failed, StatusCode: status, Err: err}
}

// bodyRetryAfter reads the retry_after seconds some sinks put in the 429 body
func bodyRetryAfter(r io.Reader) time.Duration {
	var body struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err != nil || body.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(body.RetryAfter * float64(time.Second))
}
