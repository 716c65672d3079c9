package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultCloudAPITimeout = 15 * time.Second

type templateLanguage struct {
	Code string `json:"code"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	SubType    string              `json:"sub_type,omitempty"`
	Index      string              `json:"index,omitempty"`
	Parameters []templateParameter `json:"parameters"`
}

type templatePayload struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type cloudAPIRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	RecipientType    string          `json:"recipient_type"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type cloudAPIResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// CloudAPIProvider delivers template messages through the WhatsApp
// Cloud API. One Send is one HTTP call; retry policy lives in dispatch.
type CloudAPIProvider struct {
	client  *resty.Client
	baseURL string
}

func NewCloudAPIProvider(baseURL string) (*CloudAPIProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultCloudAPITimeout)
	client.SetRetryCount(0)

	return NewCloudAPIProviderWithClient(baseURL, client)
}

func NewCloudAPIProviderWithClient(baseURL string, client *resty.Client) (*CloudAPIProvider, error) {
	trimmedBase := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedBase == "" {
		return nil, fmt.Errorf("cloud api base url is required")
	}
	if _, err := url.ParseRequestURI(trimmedBase); err != nil {
		return nil, fmt.Errorf("invalid cloud api base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultCloudAPITimeout)
	}
	client.SetRetryCount(0)

	return &CloudAPIProvider{
		client:  client,
		baseURL: trimmedBase,
	}, nil
}

func (p *CloudAPIProvider) Send(ctx context.Context, msg OutboundMessage) (*SendResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if err := msg.Credentials.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	if err := msg.Template.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/messages", p.baseURL, msg.Credentials.PhoneNumberID)

	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(msg.Credentials.AccessToken).
		SetBody(buildCloudAPIRequest(msg)).
		Post(endpoint)
	if err != nil {
		kind := KindTransient
		if errors.Is(err, context.Canceled) {
			kind = KindUnknown
		}
		return nil, &SendError{
			Kind:    kind,
			Message: "provider request failed",
			Cause:   err,
		}
	}
	if response == nil {
		return nil, &SendError{
			Kind:    KindTransient,
			Message: "provider returned empty response",
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &SendResponse{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  parseProviderMessageID(responseBody),
		}, nil
	}

	return nil, &SendError{
		Kind:       classifyHTTPStatus(statusCode),
		StatusCode: statusCode,
		Message:    providerErrorMessage(statusCode, responseBody),
		RetryAfter: parseRetryAfter(response.Header().Get("Retry-After")),
	}
}

func buildCloudAPIRequest(msg OutboundMessage) cloudAPIRequest {
	tmpl := msg.Template

	components := make([]templateComponent, 0, 3)
	if tmpl.HeaderParam != "" {
		components = append(components, templateComponent{
			Type:       "header",
			Parameters: []templateParameter{{Type: "text", Text: tmpl.HeaderParam}},
		})
	}
	if len(tmpl.BodyParams) > 0 {
		params := make([]templateParameter, 0, len(tmpl.BodyParams))
		for _, p := range tmpl.BodyParams {
			params = append(params, templateParameter{Type: "text", Text: p})
		}
		components = append(components, templateComponent{
			Type:       "body",
			Parameters: params,
		})
	}
	for i, p := range tmpl.ButtonParams {
		components = append(components, templateComponent{
			Type:       "button",
			SubType:    "url",
			Index:      strconv.Itoa(i),
			Parameters: []templateParameter{{Type: "text", Text: p}},
		})
	}

	return cloudAPIRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               msg.To,
		Type:             "template",
		Template: templatePayload{
			Name:       tmpl.Name,
			Language:   templateLanguage{Code: tmpl.LanguageCode},
			Components: components,
		},
	}
}

func classifyHTTPStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return KindValidation
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode == http.StatusRequestTimeout:
		return KindTransient
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		return KindTransient
	default:
		return KindUnknown
	}
}

func providerErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("provider returned status %d", statusCode)
	if body == "" {
		return base
	}

	var parsed cloudAPIResponse
	if err := json.Unmarshal([]byte(body), &parsed); err == nil && parsed.Error != nil {
		return fmt.Sprintf("%s: %s (code %d)", base, parsed.Error.Message, parsed.Error.Code)
	}

	return fmt.Sprintf("%s: %s", base, body)
}

func parseProviderMessageID(body string) string {
	if body == "" {
		return ""
	}

	var parsed cloudAPIResponse
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return ""
	}
	if len(parsed.Messages) == 0 {
		return ""
	}
	return strings.TrimSpace(parsed.Messages[0].ID)
}

func parseRetryAfter(header string) time.Duration {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(trimmed); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(trimmed); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}
