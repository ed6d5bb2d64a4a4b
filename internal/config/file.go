package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Worker *WorkerConfig  `yaml:"worker"`
	Models []ModelConfig `yaml:"models"`
}

// ApplyFile overlays worker budgets and the model catalog from a YAML file.
// Zero values in the file keep the current setting.
func ApplyFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	if fc.Worker != nil {
		mergeWorker(&cfg.Worker, *fc.Worker)
	}
	for i, m := range fc.Models {
		if m.Key == "" || m.Provider == "" {
			return fmt.Errorf("models[%d]: key and provider are required", i)
		}
		if m.Cost < 0 {
			return errors.New("models: cost must not be negative")
		}
	}
	cfg.Models = append(cfg.Models, fc.Models...)
	return nil
}

func mergeWorker(dst *WorkerConfig, src WorkerConfig) {
	if src.MaxProcessing > 0 {
		dst.MaxProcessing = src.MaxProcessing
	}
	if src.StaleAfter.Duration > 0 {
		dst.StaleAfter = src.StaleAfter
	}
	if src.TriggerInterval.Duration > 0 {
		dst.TriggerInterval = src.TriggerInterval
	}
	if src.ScrapeWait.Duration > 0 {
		dst.ScrapeWait = src.ScrapeWait
	}
	if src.ScrapeTimeout.Duration > 0 {
		dst.ScrapeTimeout = src.ScrapeTimeout
	}
	if src.ScrapeAbort.Duration > 0 {
		dst.ScrapeAbort = src.ScrapeAbort
	}
	if src.ProviderTimeout.Duration > 0 {
		dst.ProviderTimeout = src.ProviderTimeout
	}
}
