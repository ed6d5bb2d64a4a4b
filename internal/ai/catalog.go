package ai

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownModel is returned for a model key that is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// Model is a selectable scoring model and its credit cost per completed job.
type Model struct {
	Key      string
	Provider string
	Name     string
	Cost     int
}

func DefaultModels() []Model {
	return []Model{
		{Key: "gemini-flash", Provider: ProviderGemini, Name: "gemini-2.5-flash", Cost: 9},
		{Key: "deepseek", Provider: ProviderOpenRouter, Name: "deepseek/deepseek-chat", Cost: 9},
		{Key: "gemini-pro", Provider: ProviderGemini, Name: "gemini-2.5-pro", Cost: 12},
		{Key: "gpt-4o", Provider: ProviderOpenAI, Name: "gpt-4o", Cost: 12},
		{Key: "claude-sonnet", Provider: ProviderAnthropic, Name: "claude-sonnet-4-20250514", Cost: 14},
	}
}

type Catalog struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewCatalog indexes models by key; a later entry replaces an earlier one.
func NewCatalog(models ...[]Model) *Catalog {
	c := &Catalog{models: make(map[string]Model)}
	for _, set := range models {
		for _, m := range set {
			c.Put(m)
		}
	}
	return c
}

func (c *Catalog) Put(m Model) {
	m.Key = normalizeKey(m.Key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[m.Key] = m
}

func (c *Catalog) Lookup(key string) (Model, error) {
	c.mu.RLock()
	m, ok := c.models[normalizeKey(key)]
	c.mu.RUnlock()
	if !ok {
		return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return m, nil
}

// Cost is the credit charge for one completed job on key.
func (c *Catalog) Cost(key string) (int, error) {
	m, err := c.Lookup(key)
	if err != nil {
		return 0, err
	}
	return m.Cost, nil
}

func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.models))
	for k := range c.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
