package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/siteaudit/internal/httpx"
)

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestOpenAIBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body := decodeBody(t, r)
		assert.Equal(t, "gpt-4o", body["model"])
		msgs := body["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		assert.Equal(t, "the doc", msgs[1].(map[string]any)["content"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenAIBackend(srv.URL, "sk-test", "gpt-4o", time.Second)
	text, err := Complete(context.Background(), b, "rubric", "the doc")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)
}

func TestOpenRouterBackend_Headers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://siteaudit.test", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "siteaudit", r.Header.Get("X-Title"))
		body := decodeBody(t, r)
		assert.NotContains(t, body, "response_format")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	b := NewOpenRouterBackend(srv.URL, "or-key", "deepseek/deepseek-chat", "https://siteaudit.test", "siteaudit", time.Second)
	text, err := Complete(context.Background(), b, "rubric", "doc")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestAnthropicBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ant-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body := decodeBody(t, r)
		assert.Equal(t, "rubric", body["system"])
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part one "},{"type":"tool_use"},{"type":"text","text":"part two"}]}`))
	}))
	defer srv.Close()

	b := NewAnthropicBackend(srv.URL, "ant-key", "claude-sonnet", time.Second)
	text, err := Complete(context.Background(), b, "rubric", "doc")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", text)
}

func TestGeminiBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-pro:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))
		body := decodeBody(t, r)
		sys := body["systemInstruction"].(map[string]any)["parts"].([]any)[0].(map[string]any)
		assert.Equal(t, "rubric", sys["text"])
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	b := NewGeminiBackend(srv.URL, "g-key", "gemini-2.5-pro", time.Second)
	text, err := Complete(context.Background(), b, "rubric", "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)
}

func TestGeminiBackend_Blocked(t *testing.T) {
	b := NewGeminiBackend("", "g-key", "gemini-2.5-flash", time.Second)
	_, err := b.ExtractText([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	require.ErrorContains(t, err, "SAFETY")
}

func TestBackend_ProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := Complete(context.Background(), NewOpenAIBackend(srv.URL, "k", "gpt-4o", time.Second), "rubric", "doc")
	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
}

func TestBackend_MissingKey(t *testing.T) {
	backends := []Backend{
		NewOpenAIBackend("", "", "gpt-4o", time.Second),
		NewAnthropicBackend("", "", "claude", time.Second),
		NewGeminiBackend("", " ", "gemini", time.Second),
		NewOpenRouterBackend("", "", "deepseek", "", "", time.Second),
	}
	for _, b := range backends {
		_, err := b.BuildRequest(context.Background(), "rubric", "doc")
		require.ErrorIs(t, err, ErrMissingCredentials)
	}
}
