package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/suPer8Hu/siteaudit/internal/assessment"
)

// Router resolves a model key to a backend and scores a document with it.
type Router struct {
	registry *Registry
	catalog  *Catalog
	logger   *slog.Logger
	timeout  time.Duration
}

func NewRouter(registry *Registry, catalog *Catalog, logger *slog.Logger, timeout time.Duration) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, catalog: catalog, logger: logger, timeout: timeout}
}

func (r *Router) Cost(modelKey string) (int, error) {
	return r.catalog.Cost(modelKey)
}

func (r *Router) Score(ctx context.Context, modelKey, document string) (*assessment.Assessment, error) {
	m, err := r.catalog.Lookup(modelKey)
	if err != nil {
		return nil, err
	}
	backend, err := r.registry.Get(ctx, m.Provider, m.Name)
	if err != nil {
		return nil, err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := Complete(ctx, backend, Instructions, document)
	if err != nil {
		return nil, err
	}

	a, err := assessment.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", m.Key, err)
	}
	r.logger.Debug("scored document",
		"model", m.Key,
		"provider", m.Provider,
		"strategy", a.Strategy,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}
