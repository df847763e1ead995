package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the configuration of the workspace API server.
// Variables are named after the field path, e.g. DB.SSLMode reads DB_SSL_MODE.
type Config struct {
	DB       DatabaseConfig `split_words:"true"`
	JWT      JWTConfig      `split_words:"true"`
	App      AppConfig      `split_words:"true"`
	Conflict ConflictConfig `split_words:"true"`
}

type DatabaseConfig struct {
	Host        string `split_words:"true" default:"localhost"`
	Port        int    `split_words:"true" default:"5432"`
	User        string `split_words:"true" default:"postgres"`
	Password    string `split_words:"true"`
	Name        string `split_words:"true" default:"cmlabs_hris"`
	SSLMode     string `split_words:"true" default:"disable"`
	MaxConns    int32  `split_words:"true" default:"25"`
	MinConns    int32  `split_words:"true" default:"5"`
	AutoMigrate bool   `split_words:"true" default:"false"`
}

// JWTConfig holds JWT configuration. The secret is shared with the HRIS
// backend that issues access tokens.
type JWTConfig struct {
	SecretKey            string `split_words:"true"`
	AccessExpirationTime string `split_words:"true" default:"1h"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int      `split_words:"true" default:"8080"`
	Env            string   `split_words:"true" default:"development"`
	LogLevel       string   `split_words:"true" default:"info"`
	AllowedOrigins []string `split_words:"true" default:"http://localhost:3000"`
}

// ConflictConfig tunes conflict bookkeeping
type ConflictConfig struct {
	TTL           time.Duration `split_words:"true" default:"24h"`
	PurgeInterval time.Duration `split_words:"true" default:"15m"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.SecretKey == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpirationTime); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	if c.Conflict.TTL <= 0 {
		return fmt.Errorf("CONFLICT_TTL must be positive")
	}
	if c.Conflict.PurgeInterval <= 0 {
		return fmt.Errorf("CONFLICT_PURGE_INTERVAL must be positive")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DB.User,
		c.DB.Password,
		c.DB.Host,
		c.DB.Port,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// SlogLevel parses LOG_LEVEL, falling back to info.
func (c *AppConfig) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// loadDotEnv loads .env from the working directory; a missing file is fine.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("error loading .env file: %w", err)
}
