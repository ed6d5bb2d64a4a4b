package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GeminiBackend calls generateContent. The flash and pro tiers differ only in Model.
type GeminiBackend struct {
	sender
	BaseURL string
	APIKey  string
	Model   string
}

func NewGeminiBackend(baseURL, apiKey, model string, timeout time.Duration) *GeminiBackend {
	return &GeminiBackend{
		sender:  newSender("gemini", timeout),
		BaseURL: endpoint(baseURL, "https://generativelanguage.googleapis.com/v1beta"),
		APIKey:  apiKey,
		Model:   model,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiReq struct {
	SystemInstruction geminiContent   `json:"systemInstruction"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResp struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GeminiBackend) BuildRequest(ctx context.Context, instructions, document string) (*http.Request, error) {
	if err := requireKey("gemini", p.APIKey); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.Model) == "" {
		return nil, errors.New("gemini: model is required")
	}
	var body geminiReq
	body.SystemInstruction = geminiContent{Parts: []geminiPart{{Text: instructions}}}
	body.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: document}}}}
	body.GenerationConfig.Temperature = 0.2
	body.GenerationConfig.ResponseMimeType = "application/json"

	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/models/%s:generateContent", p.BaseURL, url.PathEscape(p.Model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.APIKey)
	return req, nil
}

func (p *GeminiBackend) ExtractText(body []byte) (string, error) {
	var decoded geminiResp
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("gemini: decode: %w", err)
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", fmt.Errorf("gemini: %s", decoded.Error.Message)
	}
	if decoded.PromptFeedback != nil && decoded.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini: prompt blocked (%s)", decoded.PromptFeedback.BlockReason)
	}
	if len(decoded.Candidates) == 0 {
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("gemini: empty response (finish reason %s)", decoded.Candidates[0].FinishReason)
	}
	return b.String(), nil
}
