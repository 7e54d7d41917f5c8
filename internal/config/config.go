// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port" env:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	ChatTimeout    time.Duration `yaml:"chat_timeout" env:"CHAT_TIMEOUT"` // end-to-end deadline per chat turn
	TrustProxy     bool          `yaml:"trust_proxy" env:"TRUST_PROXY"`   // honour X-Forwarded-For
}

type LogConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`   // trace|debug|info|warn|error
	Format   string `yaml:"format" env:"LOG_FORMAT"` // json|console
	Sampling bool   `yaml:"sampling" env:"LOG_SAMPLING"`
}

type AdminConfig struct {
	APIKey       string        `yaml:"api_key" env:"ADMIN_API_KEY"`
	JWTSecret    string        `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET"`
	SessionTTL   time.Duration `yaml:"session_ttl" env:"ADMIN_SESSION_TTL"`
	SecureCookie bool          `yaml:"secure_cookie" env:"ADMIN_SECURE_COOKIE"`
	CookieDomain string        `yaml:"cookie_domain" env:"ADMIN_COOKIE_DOMAIN"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS"`
	Migrate  bool   `yaml:"migrate" env:"DATABASE_MIGRATE"`
}

type RedisConfig struct {
	URL      string `yaml:"url" env:"REDIS_URL"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

type ChatConfig struct {
	RateLimit         int           `yaml:"rate_limit" env:"CHAT_RATE_LIMIT"`
	RateWindowSeconds int           `yaml:"rate_window_seconds" env:"CHAT_RATE_WINDOW_SECONDS"`
	RateLimitBackend  string        `yaml:"rate_limit_backend" env:"CHAT_RATE_LIMIT_BACKEND"` // memory|redis
	SweepInterval     time.Duration `yaml:"sweep_interval" env:"CHAT_RATE_SWEEP_INTERVAL"`
	SweepGrace        time.Duration `yaml:"sweep_grace" env:"CHAT_RATE_SWEEP_GRACE"`
	MaxMessageLength  int           `yaml:"max_message_length" env:"CHAT_MAX_MESSAGE_LENGTH"`
	HistoryLimit      int           `yaml:"history_limit" env:"CHAT_HISTORY_LIMIT"`
}

// RateWindow is the fixed-window length.
func (c ChatConfig) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}

type AIConfig struct {
	Provider        string  `yaml:"provider" env:"AI_PROVIDER"` // openai|compatible|gemini|noop
	OpenAIKey       string  `yaml:"openai_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string  `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	CompatibleKey   string  `yaml:"compatible_key" env:"AI_COMPATIBLE_KEY"`
	CompatibleURL   string  `yaml:"compatible_base_url" env:"AI_COMPATIBLE_BASE_URL"`
	GeminiKey       string  `yaml:"gemini_key" env:"GEMINI_API_KEY"`
	GeminiURL       string  `yaml:"gemini_url" env:"GEMINI_BASE_URL"`
	DefaultModel    string  `yaml:"default_model" env:"AI_MODEL"`
	MaxTokens       int     `yaml:"max_tokens" env:"AI_MAX_TOKENS"`
	Temperature     float64 `yaml:"temperature" env:"AI_TEMPERATURE"`
	ConcurrentLimit int     `yaml:"concurrent_limit" env:"AI_CONCURRENT_LIMIT"` // max concurrent AI calls
	CostPer1KTokens string  `yaml:"cost_per_1k_tokens_usd" env:"AI_COST_PER_1K_TOKENS_USD"`

	// model -> provider routing when more than one provider key is set
	ModelToProvider map[string]string `yaml:"model_to_provider" env:"-"`
}

type ModerationConfig struct {
	Enabled       bool   `yaml:"enabled" env:"MODERATION_ENABLED"`
	FailurePolicy string `yaml:"failure_policy" env:"MODERATION_FAILURE_POLICY"` // allow|reject
	Model         string `yaml:"model" env:"MODERATION_MODEL"`
	APIKey        string `yaml:"api_key" env:"MODERATION_API_KEY"` // falls back to ai.openai_key
}

type KnowledgeConfig struct {
	OverviewLimit int `yaml:"overview_limit" env:"KNOWLEDGE_OVERVIEW_LIMIT"`
	NewsLimit     int `yaml:"news_limit" env:"KNOWLEDGE_NEWS_LIMIT"`
	EventsLimit   int `yaml:"events_limit" env:"KNOWLEDGE_EVENTS_LIMIT"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Admin      AdminConfig      `yaml:"admin"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Chat       ChatConfig       `yaml:"chat"`
	AI         AIConfig         `yaml:"ai"`
	Moderation ModerationConfig `yaml:"moderation"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`

	Runtime RuntimeConfig `yaml:"-" env:"-"`
}

const (
	PolicyAllow  = "allow"
	PolicyReject = "reject"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Defaults returns a config that runs locally without a file.
func Defaults() Config {
	return Config{
		Server: ServerConfig{Port: 8080, RequestTimeout: 30 * time.Second, ChatTimeout: 25 * time.Second, TrustProxy: true},
		Log:    LogConfig{Level: "info", Format: "json"},
		Admin:  AdminConfig{SessionTTL: 30 * time.Minute},
		Database: DatabaseConfig{
			MaxConns: 10,
			Migrate:  true,
		},
		Chat: ChatConfig{
			RateLimit:         10,
			RateWindowSeconds: 60,
			RateLimitBackend:  BackendMemory,
			SweepInterval:     5 * time.Minute,
			SweepGrace:        60 * time.Second,
			MaxMessageLength:  2000,
			HistoryLimit:      10,
		},
		AI: AIConfig{
			Provider:        "openai",
			DefaultModel:    "gpt-4o-mini",
			MaxTokens:       500,
			Temperature:     0.7,
			ConcurrentLimit: 16,
			CostPer1KTokens: "0.0006",
		},
		Moderation: ModerationConfig{
			Enabled:       true,
			FailurePolicy: PolicyAllow,
			Model:         "omni-moderation-latest",
		},
		Knowledge: KnowledgeConfig{OverviewLimit: 200, NewsLimit: 10, EventsLimit: 10},
	}
}

// Load reads the yaml file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string, dev bool) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Chat.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.Chat.RateLimitBackend))
	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	c.Moderation.FailurePolicy = strings.ToLower(strings.TrimSpace(c.Moderation.FailurePolicy))
	if c.Moderation.APIKey == "" {
		c.Moderation.APIKey = c.AI.OpenAIKey
	}
	if c.Chat.SweepInterval <= 0 {
		c.Chat.SweepInterval = 5 * time.Minute
	}
	if c.Chat.SweepGrace < 0 {
		c.Chat.SweepGrace = 0
	}
	if c.AI.ConcurrentLimit < 0 {
		c.AI.ConcurrentLimit = 0
	}
}

// Validate checks enums and ranges.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Chat.RateLimit <= 0 {
		return errors.New("chat.rate_limit must be positive")
	}
	if c.Chat.RateWindowSeconds <= 0 {
		return errors.New("chat.rate_window_seconds must be positive")
	}
	if c.Chat.MaxMessageLength <= 0 {
		return errors.New("chat.max_message_length must be positive")
	}
	if c.Chat.HistoryLimit < 0 {
		return errors.New("chat.history_limit must not be negative")
	}
	switch c.Chat.RateLimitBackend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("chat.rate_limit_backend %q: want memory or redis", c.Chat.RateLimitBackend)
	}
	switch c.AI.Provider {
	case "openai", "compatible", "gemini", "noop":
	default:
		return fmt.Errorf("ai.provider %q: want openai, compatible, gemini or noop", c.AI.Provider)
	}
	if c.AI.MaxTokens <= 0 {
		return errors.New("ai.max_tokens must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return errors.New("ai.temperature must be within [0, 2]")
	}
	switch c.Moderation.FailurePolicy {
	case PolicyAllow, PolicyReject:
	default:
		return fmt.Errorf("moderation.failure_policy %q: want allow or reject", c.Moderation.FailurePolicy)
	}
	if c.Knowledge.OverviewLimit <= 0 || c.Knowledge.NewsLimit <= 0 || c.Knowledge.EventsLimit <= 0 {
		return errors.New("knowledge limits must be positive")
	}
	return nil
}
