// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port              string
	FrontendURL       string
	DBPath            string
	SessionTTL        time.Duration
	OpenAIAPIKey      string
	OpenAIModel       string
	AgentTimeout      time.Duration
	MonitorCleanTurns int
	RateLimit         RateLimitConfig
	UsageLog          UsageLogConfig
}

// RateLimitConfig controls the per-client turn rate limiter.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
}

// UsageLogConfig controls NDJSON usage metering.
type UsageLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("USAGE_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		DBPath:            getEnv("DB_PATH", "./data/aplomb.db"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 60*time.Minute),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		AgentTimeout:      getEnvDuration("AGENT_TIMEOUT", 30*time.Second),
		MonitorCleanTurns: getEnvInt("MONITOR_CLEAN_TURNS", 1),
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			Window:            getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		UsageLog: UsageLogConfig{
			Enabled:   getEnvBool("USAGE_LOG_ENABLED", true),
			Dir:       getEnv("USAGE_LOG_DIR", "./data/logs/usage"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.AgentTimeout <= 0 {
		return fmt.Errorf("AGENT_TIMEOUT must be > 0")
	}
	if c.MonitorCleanTurns <= 0 {
		return fmt.Errorf("MONITOR_CLEAN_TURNS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.UsageLog.Enabled && c.UsageLog.Dir == "" {
		return fmt.Errorf("USAGE_LOG_DIR cannot be empty")
	}
	return nil
}

// AllowedOrigins returns the CORS origin allowlist.
func (c *Config) AllowedOrigins() []string {
	origins := []string{}
	if c.FrontendURL != "" {
		origins = append(origins, c.FrontendURL)
	}
	if c.IsDevelopment() {
		origins = append(origins,
			"http://localhost:3000",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:5173",
		)
	}
	return origins
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
