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

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatReq struct {
	Model          string      `json:"model"`
	Messages       []chatMsg   `json:"messages"`
	Temperature    float64     `json:"temperature"`
	ResponseFormat *chatFormat `json:"response_format,omitempty"`
}

type chatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newChatRequest(ctx context.Context, url, model, instructions, document string, jsonMode bool) (*http.Request, error) {
	body := chatReq{
		Model: model,
		Messages: []chatMsg{
			{Role: "system", Content: instructions},
			{Role: "user", Content: document},
		},
		Temperature: 0.2,
	}
	if jsonMode {
		body.ResponseFormat = &chatFormat{Type: "json_object"}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func chatText(name string, body []byte) (string, error) {
	var decoded chatResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%s: decode: %w", name, err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("%s: %s", name, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: empty response", name)
	}
	return decoded.Choices[0].Message.Content, nil
}

// OpenAIBackend calls the chat completions API.
type OpenAIBackend struct {
	sender
	BaseURL string
	APIKey  string
	Model   string
}

func NewOpenAIBackend(baseURL, apiKey, model string, timeout time.Duration) *OpenAIBackend {
	return &OpenAIBackend{
		sender:  newSender("openai", timeout),
		BaseURL: endpoint(baseURL, "https://api.openai.com/v1"),
		APIKey:  apiKey,
		Model:   model,
	}
}

func (p *OpenAIBackend) BuildRequest(ctx context.Context, instructions, document string) (*http.Request, error) {
	if err := requireKey("openai", p.APIKey); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Model) == "" {
		return nil, errors.New("openai: model is required")
	}
	req, err := newChatRequest(ctx, p.BaseURL+"/chat/completions", p.Model, instructions, document, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	return req, nil
}

func (p *OpenAIBackend) ExtractText(body []byte) (string, error) {
	return chatText("openai", body)
}
