package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for the inference core. Extend as needed.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cloud LLM credential and model. An empty key means the proxy has no
	// server-side credential and answers 503.
	OpenAIKey      string `env:"OPENAI_API_KEY"`
	LLMModel       string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	OutputLanguage string `env:"OUTPUT_LANGUAGE" envDefault:"en"`

	// Distributed rate-limit store. When the URL is absent the limiter runs
	// on its in-process backend only.
	RedisURL   string `env:"REDIS_URL"`
	RedisToken string `env:"REDIS_TOKEN"`

	// Rate limiter window parameters.
	RateLimitCeiling int           `env:"RATE_LIMIT_CEILING" envDefault:"5"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`

	// Result cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"memory"` // "memory", "redis" or "postgres"
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"168h"`
	DBURL         string        `env:"DB_URL"`

	// On-device model artifacts and the platform-native daemon.
	ModelBaseURL  string `env:"MODEL_BASE_URL" envDefault:"https://models.articlereader.dev"`
	PlatformURL   string `env:"PLATFORM_URL" envDefault:"http://localhost:11434"`
	PlatformModel string `env:"PLATFORM_MODEL" envDefault:"gemma3:1b"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
