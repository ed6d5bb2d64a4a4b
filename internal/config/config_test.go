package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("FIRECRAWL_API_KEY", "")

	cfg := Load()
	require.Equal(t, "mysql", cfg.DBDriver)
	require.Contains(t, cfg.DBDSN, "siteaudit")
	require.Equal(t, 3, cfg.Worker.MaxProcessing)
	require.Equal(t, 5*time.Minute, cfg.Worker.StaleAfter.Duration)
	require.Equal(t, 30*time.Second, cfg.Worker.TriggerInterval.Duration)
	require.Error(t, cfg.Validate(), "missing content api key must be reported")
}

func TestApplyFile_OverlaysWorkerAndModels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
worker:
  scrape_abort: 60s
  stale_after: 600
models:
  - key: gpt-4o
    provider: openai
    model: gpt-4o-2024-11-20
    cost: 15
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg := Config{Worker: DefaultWorker()}
	require.NoError(t, ApplyFile(path, &cfg))

	require.Equal(t, 60*time.Second, cfg.Worker.ScrapeAbort.Duration)
	require.Equal(t, 10*time.Minute, cfg.Worker.StaleAfter.Duration)
	require.Equal(t, 3*time.Second, cfg.Worker.ScrapeWait.Duration)
	require.Len(t, cfg.Models, 1)
	require.Equal(t, 15, cfg.Models[0].Cost)
}

func TestApplyFile_RejectsModelWithoutProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - key: x\n"), 0o644))

	cfg := Config{Worker: DefaultWorker()}
	require.Error(t, ApplyFile(path, &cfg))
}
