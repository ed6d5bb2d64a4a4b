package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/suPer8Hu/siteaudit/internal/acquire"
	"github.com/suPer8Hu/siteaudit/internal/ai"
	"github.com/suPer8Hu/siteaudit/internal/analysis"
	"github.com/suPer8Hu/siteaudit/internal/blob"
	"github.com/suPer8Hu/siteaudit/internal/config"
	"github.com/suPer8Hu/siteaudit/internal/db"
	"github.com/suPer8Hu/siteaudit/internal/httpapi"
	"github.com/suPer8Hu/siteaudit/internal/httpapi/handlers"
	"github.com/suPer8Hu/siteaudit/internal/observability"
	"github.com/suPer8Hu/siteaudit/internal/store/rabbitmq"
	"github.com/suPer8Hu/siteaudit/internal/store/redisstore"
)

const dispatchLeaseKey = "siteaudit:dispatch"

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	if cfg.ConfigFile != "" {
		if err := config.ApplyFile(cfg.ConfigFile, &cfg); err != nil {
			logger.Error("config file", "path", cfg.ConfigFile, "err", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(otel.GetMeterProvider())

	// Misconfiguration keeps the server up; the trigger reports it.
	configErr := cfg.Validate()
	var (
		runner   handlers.Runner
		jobs     handlers.JobReader
		uploader *acquire.ScreenshotUploader
		cleanup  []func()
	)
	if configErr != nil {
		logger.Error("worker is not configured", "err", configErr)
	} else {
		w, err := buildWorker(ctx, cfg, logger, metrics)
		if err != nil {
			logger.Error("worker setup failed", "err", err)
			os.Exit(1)
		}
		runner, jobs, uploader, cleanup = w.dispatcher, w.repo, w.uploader, w.cleanup
	}
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	if cfg.LogFormat != "text" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := handlers.NewHandler(runner, jobs, configErr, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(h, cfg.SchedulerJWTSecret, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SelfSchedule && runner != nil {
		go selfSchedule(ctx, runner, cfg.Worker.TriggerInterval.Duration, logger)
	}

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.StaleAfter.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if uploader != nil {
		uploader.Wait()
	}
}

type worker struct {
	repo       *analysis.Repo
	dispatcher *analysis.Dispatcher
	uploader   *acquire.ScreenshotUploader
	cleanup    []func()
}

func buildWorker(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*worker, error) {
	w := &worker{}

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	repo := analysis.NewRepo(gdb)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	w.repo = repo

	store, err := blob.NewFileStore(cfg.BlobDir)
	if err != nil {
		return nil, err
	}
	w.uploader = acquire.NewScreenshotUploader(store, logger, metrics)

	acqOpts := []acquire.Option{
		acquire.WithScreenshots(w.uploader),
		acquire.WithLogger(logger),
		acquire.WithMetrics(metrics),
	}
	if cfg.PageSpeedAPIKey != "" {
		acqOpts = append(acqOpts, acquire.WithPerformance(acquire.NewPageSpeedClient(cfg.PageSpeedBaseURL, cfg.PageSpeedAPIKey)))
	}
	if cfg.SnapshotURL != "" {
		acqOpts = append(acqOpts, acquire.WithSnapshots(acquire.NewSnapshotClient(cfg.SnapshotURL, cfg.SnapshotToken)))
	}
	acquirer := acquire.New(
		acquire.NewContentClient(cfg.FirecrawlBaseURL, cfg.FirecrawlAPIKey, cfg.ScrapePerMinute),
		acquire.Options{
			WaitFor: cfg.Worker.ScrapeWait.Duration,
			Timeout: cfg.Worker.ScrapeTimeout.Duration,
			Abort:   cfg.Worker.ScrapeAbort.Duration,
		},
		acqOpts...,
	)

	registry := ai.NewDefaultRegistry(ai.Settings{
		OpenAI:            ai.Endpoint{BaseURL: cfg.OpenAIBaseURL, APIKey: cfg.OpenAIAPIKey},
		Anthropic:         ai.Endpoint{BaseURL: cfg.AnthropicBaseURL, APIKey: cfg.AnthropicAPIKey},
		Gemini:            ai.Endpoint{BaseURL: cfg.GeminiBaseURL, APIKey: cfg.GeminiAPIKey},
		OpenRouter:        ai.Endpoint{BaseURL: cfg.OpenRouterBaseURL, APIKey: cfg.OpenRouterAPIKey},
		OpenRouterSiteURL: cfg.OpenRouterSiteURL,
		OpenRouterAppName: cfg.OpenRouterAppName,
		Timeout:           cfg.Worker.ProviderTimeout.Duration,
	})
	overrides := make([]ai.Model, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		overrides = append(overrides, ai.Model{Key: m.Key, Provider: m.Provider, Name: m.Model, Cost: m.Cost})
	}
	catalog := ai.NewCatalog(ai.DefaultModels(), overrides)
	scorer := ai.NewRouter(registry, catalog, logger, cfg.Worker.ProviderTimeout.Duration)

	var notifier analysis.Notifier
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			return nil, err
		}
		notifier = pub
		w.cleanup = append(w.cleanup, func() { _ = pub.Close() })
	}

	var lease analysis.Lease
	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			// the dispatcher proceeds without a lease when redis is down
			logger.Warn("redis ping failed", "addr", cfg.RedisAddr, "err", err)
		}
		lease = redisstore.NewLease(rs, dispatchLeaseKey, logger)
		w.cleanup = append(w.cleanup, func() { _ = rs.Close() })
	}

	pipeline := analysis.NewPipeline(repo, acquirer, scorer, notifier, logger, metrics)
	w.dispatcher = analysis.NewDispatcher(repo, pipeline, lease, analysis.DispatchOptions{
		MaxProcessing: cfg.Worker.MaxProcessing,
		StaleAfter:    cfg.Worker.StaleAfter.Duration,
	}, logger, metrics)

	logger.Info("worker configured",
		"db_driver", cfg.DBDriver,
		"max_processing", cfg.Worker.MaxProcessing,
		"models", catalog.Keys(),
		"events", cfg.RabbitURL != "",
		"lease", cfg.RedisAddr != "",
	)
	return w, nil
}

// selfSchedule triggers a dispatcher run every interval, for deployments
// without an external scheduler.
func selfSchedule(ctx context.Context, runner handlers.Runner, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			sum, err := runner.Run(ctx)
			if err != nil {
				logger.Error("scheduled run failed", "err", err)
				continue
			}
			if sum.Claimed > 0 || sum.Reaped > 0 {
				logger.Info("scheduled run", "claimed", sum.Claimed, "completed", sum.Completed, "failed", sum.Failed, "reaped", sum.Reaped)
			}
		}
	}
}
