package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeConfiguration represents a missing or malformed search document or setting
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeNetwork represents an unreachable host or a timeout
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeStatus represents a non-success HTTP status
	ErrorTypeStatus ErrorType = "status"
	// ErrorTypeParsing represents a top-level page parse failure
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeRateLimit represents a remote rate limit signal
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeDelivery represents a failed webhook delivery
	ErrorTypeDelivery ErrorType = "delivery"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
)

// Error is the error value shared by every component of the watcher.
type Error struct {
	Type       ErrorType
	Source     string
	Message    string
	StatusCode int
	RetryAfter time.Duration
	Err        error
	Time       time.Time
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Source == "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s - %v", e.Type, msg, e.Err)
		}
		return fmt.Sprintf("[%s] %s", e.Type, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Source, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Source, msg)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the same request may succeed on the next cycle.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return true
	case ErrorTypeStatus:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// New creates a new Error
func New(errType ErrorType, source, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Source:  source,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewConfiguration creates a new configuration error
func NewConfiguration(source, message string, err error) *Error {
	return New(ErrorTypeConfiguration, source, message, err)
}

// NewNetwork creates a new network error
func NewNetwork(source, message string, err error) *Error {
	return New(ErrorTypeNetwork, source, message, err)
}

// NewStatus creates an error for an unexpected HTTP status code
func NewStatus(source string, statusCode int) *Error {
	e := New(ErrorTypeStatus, source, "unexpected status code", nil)
	e.StatusCode = statusCode
	return e
}

// NewParsing creates a new parsing error
func NewParsing(source, message string, err error) *Error {
	return New(ErrorTypeParsing, source, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(source string, retryAfter time.Duration) *Error {
	message := "rate limited"
	if retryAfter > 0 {
		message = fmt.Sprintf("rate limited; retry after %v", retryAfter)
	}
	e := New(ErrorTypeRateLimit, source, message, nil)
	e.RetryAfter = retryAfter
	return e
}

// NewDelivery creates a new delivery error
func NewDelivery(source, message string, err error) *Error {
	return New(ErrorTypeDelivery, source, message, err)
}

// NewCache creates a new cache error
func NewCache(source, message string, err error) *Error {
	return New(ErrorTypeCache, source, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(source, message string, err error) *Error {
	return New(ErrorTypePublisher, source, message, err)
}

// Is reports whether any error in err's chain is an *Error of the given type.
func Is(err error, errType ErrorType) bool {
	var e *Error
	if !stderrors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// RetryAfter returns the retry-after hint carried by err, or zero.
func RetryAfter(err error) time.Duration {
	var e *Error
	if !stderrors.As(err, &e) {
		return 0
	}
	return e.RetryAfter
}
