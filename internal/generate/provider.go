package generate

import (
	"context"
	"fmt"
	"strings"
)

type ProviderName string

const (
	ProviderGemini    ProviderName = "gemini"
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
)

// Request is one non-streaming completion.
type Request struct {
	Model           string
	Prompt          string
	MaxOutputTokens int
}

// Provider returns the raw text the model produced for a request.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

func ParseProvider(s string) (ProviderName, error) {
	switch name := ProviderName(strings.ToLower(strings.TrimSpace(s))); name {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		return name, nil
	case "google":
		return ProviderGemini, nil
	case "claude":
		return ProviderAnthropic, nil
	default:
		return "", fmt.Errorf("unknown provider %q (want gemini|openai|anthropic)", s)
	}
}

func DefaultModel(p ProviderName) string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4.1-mini"
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	default:
		return "gemini-2.5-flash"
	}
}

// DisplayName is the vendor-facing name shown in the API welcome message.
func (p ProviderName) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic Claude"
	default:
		return "Google Gemini"
	}
}

func newProvider(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Provider {
	case ProviderGemini:
		return newGeminiProvider(ctx, opts.APIKey, opts.BaseURL)
	case ProviderOpenAI:
		return newOpenAIProvider(opts.APIKey, opts.BaseURL), nil
	case ProviderAnthropic:
		return newAnthropicProvider(opts.APIKey, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", opts.Provider)
	}
}
