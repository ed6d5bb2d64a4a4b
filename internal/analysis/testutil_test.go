package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/siteaudit/internal/acquire"
	"github.com/suPer8Hu/siteaudit/internal/assessment"
	"github.com/suPer8Hu/siteaudit/internal/db"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepo(gdb)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func enqueue(t *testing.T, repo *Repo, userID uint64, model string, priority int) *Job {
	t.Helper()
	job, err := repo.Enqueue(context.Background(), Submission{
		UserID:   userID,
		URL:      "https://acme.test",
		ModelKey: model,
		Priority: priority,
	})
	require.NoError(t, err)
	return job
}

func setCreatedAt(t *testing.T, repo *Repo, jobID string, at time.Time) {
	t.Helper()
	require.NoError(t, repo.db.Model(&Job{}).Where("id = ?", jobID).UpdateColumn("created_at", at).Error)
}

type fakeAcquirer struct {
	bundle *acquire.Bundle
	err    error
	calls  atomic.Int32
}

func (f *fakeAcquirer) Acquire(_ context.Context, req acquire.Request) (*acquire.Bundle, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.bundle != nil {
		return f.bundle, nil
	}
	return &acquire.Bundle{Page: &acquire.Page{
		Markdown: "# Acme\nWe sell widgets.",
		RawHTML:  `<html><head><title>Acme</title></head><body><a href="/about">About</a><a href="https://other.test">x</a></body></html>`,
	}}, nil
}

type fakeScorer struct {
	scores   assessment.CategoryScores
	err      error
	panicFor string
	costs    map[string]int
	docs     chan string
}

func (f *fakeScorer) Score(_ context.Context, modelKey, document string) (*assessment.Assessment, error) {
	if f.docs != nil {
		f.docs <- document
	}
	if f.panicFor != "" && modelKey == f.panicFor {
		panic("provider client exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &assessment.Assessment{
		Profile:      assessment.Profile{Name: "Acme", CallsToAction: []string{}, Strengths: []string{}, Weaknesses: []string{}},
		Scores:       f.scores,
		OverallScore: f.scores.Overall(),
	}, nil
}

func (f *fakeScorer) Cost(modelKey string) (int, error) {
	c, ok := f.costs[modelKey]
	if !ok {
		return 0, errors.New("unknown model")
	}
	return c, nil
}

var defaultCosts = map[string]int{"gemini-flash": 9, "deepseek": 9, "gemini-pro": 12, "gpt-4o": 12, "claude-sonnet": 14}

type recordingNotifier struct {
	events chan Event
}

func (n *recordingNotifier) Publish(_ context.Context, e Event) error {
	n.events <- e
	return nil
}
