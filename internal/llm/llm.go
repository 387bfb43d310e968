package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider identifies which LLM backend a client talks to. The set is closed:
// selection happens once in New and never again per call.
type Provider string

const (
	ProviderNone       Provider = "none"
	ProviderOpenRouter Provider = "openrouter"
	ProviderGemini     Provider = "gemini"
)

// Config carries the credentials and identity for one provider. Read once at
// construction and treated as immutable afterwards.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string

	// OpenRouter attribution headers.
	AppName string
	SiteURL string
}

// Client sends one structured generation request and returns the raw text the
// provider produced. It performs no retries and no response parsing beyond
// extracting the text payload; the caller decides what a failure means.
type Client interface {
	Provider() Provider
	Enabled() bool
	Generate(ctx context.Context, systemPrompt string, userPayload any, temperature float64) (string, error)
}

// New builds the client for the configured provider. A missing or placeholder
// API key yields a disabled client rather than an error: the orchestrator
// treats disabled as a recognized mode. An unsupported provider name is a
// configuration bug and does fail construction.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderNone, "":
		return disabledClient{}, nil
	case ProviderOpenRouter:
		if !keyUsable(cfg.APIKey) {
			return disabledClient{}, nil
		}
		return newOpenRouterClient(cfg), nil
	case ProviderGemini:
		if !keyUsable(cfg.APIKey) {
			return disabledClient{}, nil
		}
		return newGeminiClient(cfg), nil
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}

// keyUsable rejects empty keys and template defaults like "your_api_key_here"
// so a shipped .env.example can never pass for a working credential.
func keyUsable(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(key), "your_")
}

type disabledClient struct{}

func (disabledClient) Provider() Provider { return ProviderNone }
func (disabledClient) Enabled() bool      { return false }

func (disabledClient) Generate(ctx context.Context, systemPrompt string, userPayload any, temperature float64) (string, error) {
	return "", ErrDisabled
}
