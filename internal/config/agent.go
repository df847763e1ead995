package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const agentNamespace = "SYNCD"

// AgentConfig is the configuration of the sync agent (syncd).
type AgentConfig struct {
	API      UpstreamConfig `split_words:"true"`
	Redis    RedisConfig    `split_words:"true"`
	Local    LocalAPIConfig `split_words:"true"`
	Monitor  MonitorConfig  `split_words:"true"`
	LogLevel string         `split_words:"true" default:"info"`
}

// UpstreamConfig points the agent at the workspace API.
type UpstreamConfig struct {
	URL           string        `split_words:"true" default:"http://localhost:8080"`
	Token         string        `split_words:"true"`
	Timeout       time.Duration `split_words:"true" default:"10s"`
	ProbeInterval time.Duration `split_words:"true" default:"5s"`
	ProbeTimeout  time.Duration `split_words:"true" default:"2s"`
}

type RedisConfig struct {
	Addr     string `split_words:"true" default:"localhost:6379"`
	Password string `split_words:"true"`
	DB       int    `split_words:"true" default:"0"`
	QueueKey string `split_words:"true" default:"syncd:actions"`
}

// LocalAPIConfig configures the API the admin UI talks to.
type LocalAPIConfig struct {
	Addr           string   `split_words:"true" default:"127.0.0.1:7070"`
	AllowedOrigins []string `split_words:"true" default:"http://localhost:3000"`
}

type MonitorConfig struct {
	PollInterval time.Duration `split_words:"true" default:"2s"`
	RecoveredTTL time.Duration `split_words:"true" default:"3s"`
	BatchSize    int           `split_words:"true" default:"50"`
}

// LoadAgent reads .env when present, then SYNCD_* variables, e.g.
// SYNCD_API_URL, SYNCD_REDIS_ADDR, SYNCD_MONITOR_POLL_INTERVAL.
func LoadAgent() (*AgentConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &AgentConfig{}
	if err := envconfig.Process(agentNamespace, cfg); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return cfg, nil
}

// Validate checks what `syncd run` needs; client subcommands only need
// Local.Addr.
func (c *AgentConfig) Validate() error {
	if c.API.Token == "" {
		return fmt.Errorf("SYNCD_API_TOKEN is required")
	}
	if _, err := url.ParseRequestURI(c.API.URL); err != nil {
		return fmt.Errorf("invalid SYNCD_API_URL: %w", err)
	}
	if c.Monitor.BatchSize <= 0 || c.Monitor.BatchSize > 100 {
		return fmt.Errorf("SYNCD_MONITOR_BATCH_SIZE must be between 1 and 100")
	}
	if c.Monitor.PollInterval <= 0 || c.Monitor.RecoveredTTL <= 0 {
		return fmt.Errorf("SYNCD_MONITOR_POLL_INTERVAL and SYNCD_MONITOR_RECOVERED_TTL must be positive")
	}
	return nil
}

func (c *AgentConfig) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}
