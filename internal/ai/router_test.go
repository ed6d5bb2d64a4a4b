package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fencedReply = "```json\n{\"profileData\":{\"name\":\"Acme\"},\"categoryScores\":{\"findability\":80,\"mobileUsability\":70,\"offerClarity\":60,\"trustProof\":50,\"conversionReadiness\":41,},\"overallScore\":12}\n```"

func TestRouter_ScoreEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":` + quote(fencedReply) + `}}]}`))
	}))
	defer srv.Close()

	reg := NewDefaultRegistry(Settings{OpenAI: Endpoint{BaseURL: srv.URL, APIKey: "k"}, Timeout: time.Second})
	router := NewRouter(reg, NewCatalog(DefaultModels()), nil, 5*time.Second)

	a, err := router.Score(context.Background(), "gpt-4o", "doc")
	require.NoError(t, err)
	assert.Equal(t, "Acme", a.Profile.Name)
	// (80+70+60+50+41)/5 = 60.2
	assert.Equal(t, 60, a.OverallScore)
	assert.Equal(t, "repaired", a.Strategy)
}

func TestRouter_MissingCredentials(t *testing.T) {
	router := NewRouter(NewDefaultRegistry(Settings{}), NewCatalog(DefaultModels()), nil, 0)
	_, err := router.Score(context.Background(), "claude-sonnet", "doc")
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestRouter_UnknownModel(t *testing.T) {
	router := NewRouter(NewDefaultRegistry(Settings{}), NewCatalog(DefaultModels()), nil, 0)
	_, err := router.Score(context.Background(), "gpt-2", "doc")
	require.ErrorIs(t, err, ErrUnknownModel)
}

func TestRouter_UnparseableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Sorry, I cannot help with that."}]}`))
	}))
	defer srv.Close()

	reg := NewDefaultRegistry(Settings{Anthropic: Endpoint{BaseURL: srv.URL, APIKey: "k"}, Timeout: time.Second})
	router := NewRouter(reg, NewCatalog(DefaultModels()), nil, 0)
	_, err := router.Score(context.Background(), "claude-sonnet", "doc")
	require.ErrorContains(t, err, "could not parse")
}

func TestCatalog_DefaultCostsAndOverride(t *testing.T) {
	c := NewCatalog(DefaultModels())
	for key, want := range map[string]int{"gemini-flash": 9, "deepseek": 9, "gemini-pro": 12, "gpt-4o": 12, "claude-sonnet": 14} {
		got, err := c.Cost(key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}

	c = NewCatalog(DefaultModels(), []Model{{Key: "GPT-4o", Provider: ProviderOpenAI, Name: "gpt-4o-2024-11-20", Cost: 15}})
	m, err := c.Lookup("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 15, m.Cost)
	assert.Equal(t, "gpt-4o-2024-11-20", m.Name)
	assert.Len(t, c.Keys(), 5)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	_, err := NewRegistry().Get(context.Background(), "ollama", "llama3")
	require.ErrorContains(t, err, "unknown ai provider")
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
