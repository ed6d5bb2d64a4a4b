// Package ai routes an evaluation document to one of several scoring model APIs.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/siteaudit/internal/httpx"
)

// ErrMissingCredentials is returned when a provider has no API key. It is a
// configuration error and is never retried.
var ErrMissingCredentials = errors.New("ai provider credentials are not configured")

// Backend is one provider's transport. Only the envelope and auth differ
// between providers; the instructions and document are the same for all.
type Backend interface {
	BuildRequest(ctx context.Context, instructions, document string) (*http.Request, error)
	Send(req *http.Request) ([]byte, error)
	ExtractText(body []byte) (string, error)
}

// Complete runs one request through b and returns the model's raw text.
func Complete(ctx context.Context, b Backend, instructions, document string) (string, error) {
	req, err := b.BuildRequest(ctx, instructions, document)
	if err != nil {
		return "", err
	}
	body, err := b.Send(req)
	if err != nil {
		return "", err
	}
	return b.ExtractText(body)
}

// sender is the Send half shared by the HTTP backends.
type sender struct {
	name   string
	client *http.Client
}

func newSender(name string, timeout time.Duration) sender {
	return sender{name: name, client: &http.Client{Timeout: timeout}}
}

func (s sender) Send(req *http.Request) ([]byte, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%s: http client is nil", s.name)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	body, err := httpx.ReadBody(resp, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	if err := httpx.CheckStatus(s.name, resp, body); err != nil {
		return nil, err
	}
	return body, nil
}

func requireKey(name, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%s: %w", name, ErrMissingCredentials)
	}
	return nil
}

func endpoint(baseURL, fallback string) string {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = fallback
	}
	return strings.TrimRight(baseURL, "/")
}
