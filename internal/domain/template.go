package domain

import (
	"fmt"
	"strings"
)

// Template parameter limits accepted by the messaging provider.
const (
	MaxBodyParams   = 10
	MaxButtonParams = 3
	MaxParamLength  = 1024
)

// TemplateRef identifies a pre-approved message template and its
// parameter bindings.
type TemplateRef struct {
	Name         string   `json:"name"`
	LanguageCode string   `json:"languageCode"`
	BodyParams   []string `json:"bodyParams,omitempty"`
	HeaderParam  string   `json:"headerParam,omitempty"`
	ButtonParams []string `json:"buttonParams,omitempty"`
}

func (t TemplateRef) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	if strings.TrimSpace(t.LanguageCode) == "" {
		return fmt.Errorf("%w: template languageCode is required", ErrValidation)
	}
	if len(t.BodyParams) > MaxBodyParams {
		return fmt.Errorf("%w: template body params exceed %d (got %d)", ErrValidation, MaxBodyParams, len(t.BodyParams))
	}
	if len(t.ButtonParams) > MaxButtonParams {
		return fmt.Errorf("%w: template button params exceed %d (got %d)", ErrValidation, MaxButtonParams, len(t.ButtonParams))
	}
	for i, p := range t.BodyParams {
		if len([]rune(p)) > MaxParamLength {
			return fmt.Errorf("%w: body param %d exceeds %d characters", ErrValidation, i, MaxParamLength)
		}
	}
	if len([]rune(t.HeaderParam)) > MaxParamLength {
		return fmt.Errorf("%w: header param exceeds %d characters", ErrValidation, MaxParamLength)
	}
	return nil
}

// WithVariables returns a copy of the template with body params
// substituted from a per-recipient variable map. Variables are keyed
// by the original body param value; absent keys keep the static value.
func (t TemplateRef) WithVariables(vars map[string]string) TemplateRef {
	if len(vars) == 0 || len(t.BodyParams) == 0 {
		return t
	}

	params := make([]string, len(t.BodyParams))
	copy(params, t.BodyParams)
	for i, p := range params {
		if v, ok := vars[p]; ok {
			params[i] = v
		}
	}

	out := t
	out.BodyParams = params
	return out
}
