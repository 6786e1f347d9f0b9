package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the JobPilot services.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AI       AIConfig
	Search   SearchConfig
	Mail     MailConfig
	Cycle    CycleConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	RateLimitPerMin int
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider  string
	Timeout   time.Duration
	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type SearchConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
}

type MailConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// CycleConfig tunes the orchestrator.
type CycleConfig struct {
	// ProposalEvery gates instruction-improvement proposals to every Nth
	// completed cycle per user.
	ProposalEvery int
	// InboxWindow bounds how far back the inbox scan looks.
	InboxWindow time.Duration
	// InboxMax caps the number of messages fetched per scan.
	InboxMax int
	// Interval is the cadence on which the worker re-runs cycles.
	Interval time.Duration
}

var validProviders = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"mock":      true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("JOBPILOT_PORT", 8080),
			Env:             envString("JOBPILOT_ENV", "development"),
			RateLimitPerMin: envInt("RATE_LIMIT_PER_MINUTE", 60),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider: os.Getenv("AI_PROVIDER"),
			Timeout:  envDuration("AI_TIMEOUT", 60*time.Second),
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o"),
			},
		},
		Search: SearchConfig{
			BaseURL:    envString("SEARCH_BASE_URL", "https://api.tavily.com"),
			APIKey:     os.Getenv("TAVILY_API_KEY"),
			Timeout:    envDuration("SEARCH_TIMEOUT", 30*time.Second),
			MaxResults: envInt("SEARCH_MAX_RESULTS", 20),
		},
		Mail: MailConfig{
			BaseURL: os.Getenv("MAIL_BASE_URL"),
			Token:   os.Getenv("MAIL_TOKEN"),
			Timeout: envDuration("MAIL_TIMEOUT", 30*time.Second),
		},
		Cycle: CycleConfig{
			ProposalEvery: envInt("CYCLE_PROPOSAL_EVERY", 5),
			InboxWindow:   envDuration("CYCLE_INBOX_WINDOW", 48*time.Hour),
			InboxMax:      envInt("CYCLE_INBOX_MAX", 50),
			Interval:      envDuration("CYCLE_INTERVAL", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.AI.Provider == "" {
		return fmt.Errorf("AI_PROVIDER is required")
	}
	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of anthropic, openai, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "anthropic" && c.AI.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is anthropic")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if c.Search.APIKey == "" {
		return fmt.Errorf("TAVILY_API_KEY is required")
	}

	if c.Mail.BaseURL == "" {
		return fmt.Errorf("MAIL_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Mail.BaseURL, "http://") && !strings.HasPrefix(c.Mail.BaseURL, "https://") {
		return fmt.Errorf("MAIL_BASE_URL must start with http:// or https://, got %q", c.Mail.BaseURL)
	}

	if c.Cycle.ProposalEvery < 1 {
		return fmt.Errorf("CYCLE_PROPOSAL_EVERY must be at least 1, got %d", c.Cycle.ProposalEvery)
	}
	if c.Cycle.Interval < time.Minute {
		return fmt.Errorf("CYCLE_INTERVAL must be at least 1m, got %s", c.Cycle.Interval)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
