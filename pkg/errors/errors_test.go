package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := NewNetwork("extractor", "failed to fetch page", stderrors.New("connection refused"))
	assert.Equal(t, "[network] extractor: failed to fetch page - connection refused", err.Error())

	status := NewStatus("webhook", 500)
	assert.Equal(t, "[status] webhook: unexpected status code (status 500)", status.Error())

	cfg := NewConfiguration("", "no searches", nil)
	assert.Equal(t, "[configuration] no searches", cfg.Error())
}

func TestIsAndRetryAfter(t *testing.T) {
	rl := NewRateLimit("listing", 30*time.Second)
	wrapped := fmt.Errorf("search %q: %w", "shoes", rl)

	assert.True(t, Is(wrapped, ErrorTypeRateLimit))
	assert.False(t, Is(wrapped, ErrorTypeNetwork))
	assert.Equal(t, 30*time.Second, RetryAfter(wrapped))
	assert.Contains(t, rl.Error(), "retry after 30s")

	assert.False(t, Is(stderrors.New("plain"), ErrorTypeNetwork))
	assert.Zero(t, RetryAfter(stderrors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetwork("x", "timeout", nil).IsRetryable())
	assert.True(t, NewStatus("x", 503).IsRetryable())
	assert.False(t, NewStatus("x", 404).IsRetryable())
	assert.False(t, NewRateLimit("x", 0).IsRetryable())
	assert.False(t, NewParsing("x", "bad html", nil).IsRetryable())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := NewDelivery("webhook", "post failed", cause)
	assert.ErrorIs(t, err, cause)
}
