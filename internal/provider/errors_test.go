package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestErrorKindRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{KindAuth, false},
		{KindValidation, false},
		{KindRateLimited, true},
		{KindTransient, true},
		{KindUnknown, false},
	}

	for _, tt := range tests {
		if got := tt.kind.Retryable(); got != tt.want {
			t.Fatalf("%s.Retryable() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "send error carries its kind",
			err:  &SendError{Kind: KindAuth, StatusCode: 401},
			want: KindAuth,
		},
		{
			name: "wrapped send error",
			err:  fmt.Errorf("call failed: %w", &SendError{Kind: KindRateLimited}),
			want: KindRateLimited,
		},
		{
			name: "deadline exceeded is transient",
			err:  context.DeadlineExceeded,
			want: KindTransient,
		},
		{
			name: "context canceled is not retryable",
			err:  context.Canceled,
			want: KindUnknown,
		},
		{
			name: "arbitrary error is unknown",
			err:  errors.New("boom"),
			want: KindUnknown,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRetryAfterHint(t *testing.T) {
	t.Parallel()

	if _, ok := RetryAfterHint(errors.New("boom")); ok {
		t.Fatal("plain errors should carry no hint")
	}
	if _, ok := RetryAfterHint(&SendError{Kind: KindRateLimited}); ok {
		t.Fatal("zero RetryAfter should not count as a hint")
	}

	err := fmt.Errorf("call failed: %w", &SendError{Kind: KindRateLimited, RetryAfter: 3 * time.Second})
	hint, ok := RetryAfterHint(err)
	if !ok || hint != 3*time.Second {
		t.Fatalf("RetryAfterHint() = %s,%v, want 3s,true", hint, ok)
	}
}

func TestSendErrorError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := &SendError{Kind: KindTransient, StatusCode: 503, Message: "upstream unavailable", Cause: cause}

	msg := err.Error()
	for _, want := range []string{"TRANSIENT", "status=503", "upstream unavailable", "connection reset"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("Error() = %q, want substring %q", msg, want)
		}
	}

	if !errors.Is(err, cause) {
		t.Fatal("SendError should unwrap to its cause")
	}
}
