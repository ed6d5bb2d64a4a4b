package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// OpenRouterBackend calls OpenRouter's OpenAI-compatible chat completions API.
type OpenRouterBackend struct {
	sender
	BaseURL string
	APIKey  string
	Model   string
	SiteURL string
	AppName string
}

func NewOpenRouterBackend(baseURL, apiKey, model, siteURL, appName string, timeout time.Duration) *OpenRouterBackend {
	return &OpenRouterBackend{
		sender:  newSender("openrouter", timeout),
		BaseURL: endpoint(baseURL, "https://openrouter.ai/api/v1"),
		APIKey:  apiKey,
		Model:   model,
		SiteURL: siteURL,
		AppName: appName,
	}
}

func (p *OpenRouterBackend) BuildRequest(ctx context.Context, instructions, document string) (*http.Request, error) {
	if err := requireKey("openrouter", p.APIKey); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(p.Model)
	if model == "" {
		return nil, errors.New("openrouter: model is required")
	}
	// not every routed model supports response_format
	req, err := newChatRequest(ctx, p.BaseURL+"/chat/completions", model, instructions, document, false)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	if p.SiteURL != "" {
		req.Header.Set("HTTP-Referer", p.SiteURL)
	}
	if p.AppName != "" {
		req.Header.Set("X-Title", p.AppName)
	}
	return req, nil
}

func (p *OpenRouterBackend) ExtractText(body []byte) (string, error) {
	return chatText("openrouter", body)
}
