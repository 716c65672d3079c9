package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/bulkwave/bulkwave/internal/domain"
	"github.com/bulkwave/bulkwave/internal/provider"
)

func TestStaticCredentialResolver(t *testing.T) {
	t.Parallel()

	creds := provider.Credentials{PhoneNumberID: "123456789", AccessToken: "token"}
	resolver, err := NewStaticCredentialResolver(creds)
	if err != nil {
		t.Fatalf("NewStaticCredentialResolver() error = %v", err)
	}

	got, err := resolver.Resolve(context.Background(), "any-owner")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != creds {
		t.Fatalf("Resolve() = %+v, want %+v", got, creds)
	}

	if _, err := resolver.Resolve(context.Background(), "  "); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Resolve(blank) error = %v, want ErrValidation", err)
	}
}

func TestStaticCredentialResolverRejectsIncompleteCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewStaticCredentialResolver(provider.Credentials{PhoneNumberID: "123"}); err == nil {
		t.Fatal("NewStaticCredentialResolver() without token expected error")
	}
	if _, err := NewStaticCredentialResolver(provider.Credentials{AccessToken: "token"}); err == nil {
		t.Fatal("NewStaticCredentialResolver() without phone number id expected error")
	}
}
