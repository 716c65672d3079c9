package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// ErrorKind classifies a provider call failure. Only RATE_LIMITED and
// TRANSIENT are eligible for automatic retry.
type ErrorKind string

const (
	KindAuth        ErrorKind = "AUTH_ERROR"
	KindValidation  ErrorKind = "VALIDATION_ERROR"
	KindRateLimited ErrorKind = "RATE_LIMITED"
	KindTransient   ErrorKind = "TRANSIENT"
	KindUnknown     ErrorKind = "UNKNOWN"
)

func (k ErrorKind) String() string { return string(k) }

// Retryable reports whether the kind is eligible for bounded retry.
func (k ErrorKind) Retryable() bool {
	return k == KindRateLimited || k == KindTransient
}

// SendError is the classified failure of one provider call. RetryAfter
// carries the provider's explicit wait hint when it supplied one.
type SendError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *SendError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("provider error (%s)", e.Kind))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Classify returns the error's kind, defaulting to UNKNOWN for
// anything that is not a SendError or a recognizable network failure.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransient
	}

	return KindUnknown
}

// Retryable reports whether an error should be retried.
func Retryable(err error) bool {
	return Classify(err).Retryable()
}

// RetryAfterHint extracts the provider's wait hint, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var sendErr *SendError
	if errors.As(err, &sendErr) && sendErr.RetryAfter > 0 {
		return sendErr.RetryAfter, true
	}
	return 0, false
}
