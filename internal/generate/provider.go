package generate

import (
	"context"
	"regexp"
	"strings"
)

// Provider turns a natural-language prompt into a candidate document body.
// The session core never calls this; it is a sibling collaborator exposed
// over REST so a turn holder can paste the result into their edit.
type Provider interface {
	GenerateComponent(ctx context.Context, prompt string) (string, error)
	ProviderName() string
}

// ProviderError represents an error from a generation provider.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + " error: " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + " error: " + e.Message
}

func (e *ProviderError) Unwrap() error { return e.Err }

const (
	ErrCodeAPIKey       = "invalid_api_key"
	ErrCodeServiceDown  = "service_unavailable"
	ErrCodeInvalidInput = "invalid_input"
)

var codeFence = regexp.MustCompile("(?s)```(?:jsx|javascript|js)?\\s*(.*?)\\s*```")

// StripCodeFence extracts the code block from a model reply that wraps its
// answer in markdown fences; replies without fences pass through trimmed.
func StripCodeFence(raw string) string {
	if m := codeFence.FindStringSubmatch(raw); len(m) > 1 && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}
