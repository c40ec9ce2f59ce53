package inference

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies inference failures.
type Kind string

const (
	// KindInvalidInput: the request failed validation; no backend was contacted.
	KindInvalidInput Kind = "invalid_input"
	// KindModelLoadFailed: an on-device model download or load failed. Retryable.
	KindModelLoadFailed Kind = "model_load_failed"
	// KindEngineFailure: the inference engine crashed. Not retryable without a reload.
	KindEngineFailure Kind = "engine_failure"
	// KindRateLimited: rejected by our own proxy limiter. Carries RetryAfter.
	KindRateLimited Kind = "rate_limited"
	// KindCloudRateLimited: rejected by the upstream provider's limiter.
	KindCloudRateLimited Kind = "cloud_rate_limited"
	// KindServiceUnavailable: misconfiguration or exhausted quota. Not user-actionable.
	KindServiceUnavailable Kind = "service_unavailable"
	// KindContentRejected: the provider's safety filter refused the content.
	KindContentRejected Kind = "content_rejected"
	// KindProviderFailure: unclassified provider error. Retryable at caller discretion.
	KindProviderFailure Kind = "provider_failure"
	// KindUnavailable: no provider is usable on this device. A terminal
	// non-error state rather than a fault.
	KindUnavailable Kind = "unavailable"
)

// Error is a classified inference failure. Message is suitable for direct
// display; RetryAfter, when non-zero, tells the caller when a retry may succeed.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	cause      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

// Retryable reports whether retrying the same request can succeed without
// any configuration change.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindModelLoadFailed, KindRateLimited, KindCloudRateLimited, KindProviderFailure:
		return true
	}
	return false
}

// NewError builds a classified failure with a display message.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds a classified failure with a formatted message. A trailing
// error argument becomes the wrapped cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), cause: errors.Unwrap(err)}
}

// WithRetryAfter returns a copy carrying a retry-after hint.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	out := *e
	out.RetryAfter = d
	return &out
}

// AsError extracts a classified failure from an error chain.
func AsError(err error) (*Error, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// KindOf returns the classification of err, or KindProviderFailure when the
// chain carries no classified failure.
func KindOf(err error) Kind {
	if ie, ok := AsError(err); ok {
		return ie.Kind
	}
	return KindProviderFailure
}
