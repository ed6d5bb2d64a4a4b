package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// BackendFactory builds a backend for one upstream model name.
type BackendFactory func(ctx context.Context, model string) (Backend, error)

// Registry maps a provider name to its factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]BackendFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]BackendFactory)}
}

func (r *Registry) Register(name string, f BackendFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

// Endpoint is a provider's base URL (empty for the public default) and key.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

type Settings struct {
	OpenAI     Endpoint
	Anthropic  Endpoint
	Gemini     Endpoint
	OpenRouter Endpoint

	OpenRouterSiteURL string
	OpenRouterAppName string

	Timeout time.Duration
}

// Provider names used in the catalog.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
)

// NewDefaultRegistry registers the four HTTP providers. A provider without a
// key is still registered; its factory returns ErrMissingCredentials.
func NewDefaultRegistry(s Settings) *Registry {
	r := NewRegistry()
	r.Register(ProviderOpenAI, func(_ context.Context, model string) (Backend, error) {
		if err := requireKey(ProviderOpenAI, s.OpenAI.APIKey); err != nil {
			return nil, err
		}
		return NewOpenAIBackend(s.OpenAI.BaseURL, s.OpenAI.APIKey, model, s.Timeout), nil
	})
	r.Register(ProviderAnthropic, func(_ context.Context, model string) (Backend, error) {
		if err := requireKey(ProviderAnthropic, s.Anthropic.APIKey); err != nil {
			return nil, err
		}
		return NewAnthropicBackend(s.Anthropic.BaseURL, s.Anthropic.APIKey, model, s.Timeout), nil
	})
	r.Register(ProviderGemini, func(_ context.Context, model string) (Backend, error) {
		if err := requireKey(ProviderGemini, s.Gemini.APIKey); err != nil {
			return nil, err
		}
		return NewGeminiBackend(s.Gemini.BaseURL, s.Gemini.APIKey, model, s.Timeout), nil
	})
	r.Register(ProviderOpenRouter, func(_ context.Context, model string) (Backend, error) {
		if err := requireKey(ProviderOpenRouter, s.OpenRouter.APIKey); err != nil {
			return nil, err
		}
		return NewOpenRouterBackend(s.OpenRouter.BaseURL, s.OpenRouter.APIKey, model, s.OpenRouterSiteURL, s.OpenRouterAppName, s.Timeout), nil
	})
	return r
}
