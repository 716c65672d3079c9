package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/bulkwave/bulkwave/internal/domain"
)

// Credentials is one tenant's sending account.
type Credentials struct {
	PhoneNumberID string
	AccessToken   string
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.PhoneNumberID) == "" {
		return fmt.Errorf("phone number id is required")
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("access token is required")
	}
	return nil
}

// OutboundMessage is one template send to one recipient.
type OutboundMessage struct {
	To          string
	Template    domain.TemplateRef
	Credentials Credentials
}

// SendResponse stores provider call metadata for audit and persistence.
type SendResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}

// Provider is the outbound message delivery port. Implementations
// perform exactly one provider call per invocation; retry lives above.
type Provider interface {
	Send(ctx context.Context, msg OutboundMessage) (*SendResponse, error)
}
