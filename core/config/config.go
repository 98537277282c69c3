package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/dispatch/internal/domain"
)

// ErrNoAgents is returned when no agent definition could be loaded.
var ErrNoAgents = errors.New("no agent definitions configured")

type Config struct {
	Env             string
	Port            string
	Anthropic       AnthropicConfig
	Reasoning       ReasoningConfig
	Linear          LinearConfig
	GitLab          GitLabConfig
	Redis           RedisConfig
	OTel            OTelConfig
	Agents          []domain.AgentDefinition
	AgentRunTimeout time.Duration
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
}

type ReasoningConfig struct {
	MaxIterations int // 0 = unbounded
}

type LinearConfig struct {
	WebhookSecret string
	APIKey        string
	APIURL        string
	BotUserID     string
}

type GitLabConfig struct {
	WebhookSecret string
	Token         string
	BaseURL       string
	BotUsername   string
}

type RedisConfig struct {
	URL         string
	DeliveryTTL time.Duration
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

// Load builds the configuration from environment variables.
// In development a .env file is loaded first when present.
func Load() (Config, error) {
	if getEnv("DISPATCH_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("DISPATCH_ENV", "development"),
		Port: getEnv("PORT", "8080"),
		Anthropic: AnthropicConfig{
			APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
			BaseURL: getEnv("ANTHROPIC_BASE_URL", ""),
		},
		Reasoning: ReasoningConfig{
			MaxIterations: getEnvInt("REASONING_MAX_ITERATIONS", 0),
		},
		Linear: LinearConfig{
			WebhookSecret: getEnv("LINEAR_WEBHOOK_SECRET", ""),
			APIKey:        getEnv("LINEAR_API_KEY", ""),
			APIURL:        getEnv("LINEAR_API_URL", "https://api.linear.app/graphql"),
			BotUserID:     getEnv("LINEAR_BOT_USER_ID", ""),
		},
		GitLab: GitLabConfig{
			WebhookSecret: getEnv("GITLAB_WEBHOOK_SECRET", ""),
			Token:         getEnv("GITLAB_TOKEN", ""),
			BaseURL:       getEnv("GITLAB_BASE_URL", "https://gitlab.com"),
			BotUsername:   getEnv("GITLAB_BOT_USERNAME", ""),
		},
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", ""),
			DeliveryTTL: getEnvDuration("DELIVERY_TTL", 24*time.Hour),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "dispatch"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
		AgentRunTimeout: getEnvDuration("AGENT_RUN_TIMEOUT", 0),
	}

	if cfg.Anthropic.APIKey == "" {
		return Config{}, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if cfg.Reasoning.MaxIterations < 0 {
		return Config{}, fmt.Errorf("REASONING_MAX_ITERATIONS must not be negative")
	}

	agents, err := loadAgents()
	if err != nil {
		return Config{}, err
	}
	cfg.Agents = agents

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LinearConfig) VerificationEnabled() bool {
	return c.WebhookSecret != ""
}

func (c GitLabConfig) Enabled() bool {
	return c.Token != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
