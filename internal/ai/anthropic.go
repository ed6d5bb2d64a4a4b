package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// AnthropicBackend calls the Messages API.
type AnthropicBackend struct {
	sender
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

func NewAnthropicBackend(baseURL, apiKey, model string, timeout time.Duration) *AnthropicBackend {
	return &AnthropicBackend{
		sender:    newSender("anthropic", timeout),
		BaseURL:   endpoint(baseURL, "https://api.anthropic.com"),
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: 8192,
	}
}

type anthropicReq struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []chatMsg `json:"messages"`
}

type anthropicResp struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicBackend) BuildRequest(ctx context.Context, instructions, document string) (*http.Request, error) {
	if err := requireKey("anthropic", p.APIKey); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Model) == "" {
		return nil, errors.New("anthropic: model is required")
	}
	b, err := json.Marshal(anthropicReq{
		Model:     p.Model,
		MaxTokens: p.MaxTokens,
		System:    instructions,
		Messages:  []chatMsg{{Role: "user", Content: document}},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (p *AnthropicBackend) ExtractText(body []byte) (string, error) {
	var decoded anthropicResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("anthropic: decode: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("anthropic: %s", decoded.Error.Message)
	}
	var b strings.Builder
	for _, c := range decoded.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("anthropic: empty response")
	}
	return b.String(), nil
}
