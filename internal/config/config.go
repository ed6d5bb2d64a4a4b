package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// storage
	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// rabbitMQ
	RabbitURL   string
	RabbitQueue string

	HTTPAddr           string
	LogFormat          string
	SchedulerJWTSecret string
	SelfSchedule       bool
	ConfigFile         string

	// content acquisition
	FirecrawlBaseURL string
	FirecrawlAPIKey  string
	ScrapePerMinute  int
	PageSpeedBaseURL string
	PageSpeedAPIKey  string
	SnapshotURL      string
	SnapshotToken    string
	BlobDir          string

	// AI providers
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	AnthropicBaseURL  string
	AnthropicAPIKey   string
	GeminiBaseURL     string
	GeminiAPIKey      string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterSiteURL string
	OpenRouterAppName string

	Worker WorkerConfig
	Models []ModelConfig
}

// WorkerConfig holds the dispatcher and fetch budgets.
type WorkerConfig struct {
	MaxProcessing   int      `yaml:"max_processing"`
	StaleAfter      Duration `yaml:"stale_after"`
	TriggerInterval Duration `yaml:"trigger_interval"`
	ScrapeWait      Duration `yaml:"scrape_wait"`
	ScrapeTimeout   Duration `yaml:"scrape_timeout"`
	ScrapeAbort     Duration `yaml:"scrape_abort"`
	ProviderTimeout Duration `yaml:"provider_timeout"`
}

// ModelConfig overrides or adds one entry of the scoring model catalog.
type ModelConfig struct {
	Key      string `yaml:"key"`
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Cost     int    `yaml:"cost"`
}

func DefaultWorker() WorkerConfig {
	return WorkerConfig{
		MaxProcessing:   3,
		StaleAfter:      DurationFrom(5 * time.Minute),
		TriggerInterval: DurationFrom(30 * time.Second),
		ScrapeWait:      DurationFrom(3 * time.Second),
		ScrapeTimeout:   DurationFrom(30 * time.Second),
		ScrapeAbort:     DurationFrom(45 * time.Second),
		ProviderTimeout: DurationFrom(120 * time.Second),
	}
}

func Load() Config {
	driver := strings.ToLower(getEnv("DB_DRIVER", "mysql"))

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/siteaudit?charset=utf8mb4&parseTime=true&loc=Local
	dsn := os.Getenv("DB_DSN")
	if dsn == "" && driver == "mysql" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			"app", "apppass", "127.0.0.1", "3306", "siteaudit",
		)
	}

	return Config{
		DBDriver: driver,
		DBDSN:    dsn,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RabbitURL:   os.Getenv("RABBIT_URL"),
		RabbitQueue: getEnv("RABBIT_QUEUE", "analysis_events"),

		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		SchedulerJWTSecret: os.Getenv("SCHEDULER_JWT_SECRET"),
		SelfSchedule:       getEnvBool("SELF_SCHEDULE", false),
		ConfigFile:         os.Getenv("CONFIG_FILE"),

		FirecrawlBaseURL: getEnv("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
		FirecrawlAPIKey:  os.Getenv("FIRECRAWL_API_KEY"),
		ScrapePerMinute:  getEnvInt("SCRAPE_PER_MINUTE", 60),
		PageSpeedBaseURL: getEnv("PAGESPEED_BASE_URL", "https://www.googleapis.com/pagespeedonline/v5"),
		PageSpeedAPIKey:  os.Getenv("PAGESPEED_API_KEY"),
		SnapshotURL:      os.Getenv("SNAPSHOT_URL"),
		SnapshotToken:    os.Getenv("SNAPSHOT_TOKEN"),
		BlobDir:          getEnv("BLOB_DIR", "./data/screenshots"),

		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		AnthropicBaseURL:  getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),

		Worker: DefaultWorker(),
	}
}

// Validate reports configuration the trigger cannot run without.
func (c Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required for driver %q", c.DBDriver)
	}
	if c.FirecrawlAPIKey == "" {
		return fmt.Errorf("FIRECRAWL_API_KEY is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
