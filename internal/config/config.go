package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Backoff policy names accepted by VAULTSCAN_BACKOFF_POLICY.
const (
	BackoffLinear      = "linear"
	BackoffExponential = "exponential"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	LogLevel    string `envconfig:"VAULTSCAN_LOG_LEVEL" default:"info"`
	LogDir      string `envconfig:"VAULTSCAN_LOG_DIR" default:"./logs"`
	Port        int    `envconfig:"VAULTSCAN_PORT" default:"8080"`
	DBPath      string `envconfig:"VAULTSCAN_DB_PATH" default:"./data/vaultscan.sqlite"`
	SourcesFile string `envconfig:"VAULTSCAN_SOURCES_FILE"`

	AlchemyAPIKey string `envconfig:"VAULTSCAN_ALCHEMY_API_KEY"`
	MoralisAPIKey string `envconfig:"VAULTSCAN_MORALIS_API_KEY"`

	CallTimeout   time.Duration `envconfig:"VAULTSCAN_CALL_TIMEOUT" default:"7s"`
	RetryAttempts int           `envconfig:"VAULTSCAN_RETRY_ATTEMPTS" default:"2"`
	BackoffBase   time.Duration `envconfig:"VAULTSCAN_BACKOFF_BASE" default:"400ms"`
	BackoffPolicy string        `envconfig:"VAULTSCAN_BACKOFF_POLICY" default:"exponential"`
	RateLimitRPS  int           `envconfig:"VAULTSCAN_RATE_LIMIT_RPS" default:"10"`
}

// Default returns a Config populated with the documented defaults,
// without reading the environment.
func Default() *Config {
	return &Config{
		LogLevel:      "info",
		LogDir:        LogDir,
		Port:          ServerPort,
		DBPath:        DBPath,
		CallTimeout:   DefaultCallTimeout,
		RetryAttempts: DefaultRetryAttempts,
		BackoffBase:   DefaultBackoffBase,
		BackoffPolicy: BackoffExponential,
		RateLimitRPS:  DefaultRateLimitRPS,
	}
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "file", ".env", "error", err)
		} else {
			slog.Info("loaded .env file", "file", ".env")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: call timeout must be positive, got %s", ErrInvalidConfig, c.CallTimeout)
	}
	if c.RetryAttempts < 1 || c.RetryAttempts > MaxRetryAttempts {
		return fmt.Errorf("%w: retry attempts must be 1-%d, got %d", ErrInvalidConfig, MaxRetryAttempts, c.RetryAttempts)
	}
	if c.BackoffBase < 0 {
		return fmt.Errorf("%w: backoff base must not be negative, got %s", ErrInvalidConfig, c.BackoffBase)
	}
	switch strings.ToLower(c.BackoffPolicy) {
	case BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("%w: backoff policy must be %q or %q, got %q", ErrInvalidConfig, BackoffLinear, BackoffExponential, c.BackoffPolicy)
	}
	if c.RateLimitRPS < 1 {
		return fmt.Errorf("%w: rate limit must be at least 1 rps, got %d", ErrInvalidConfig, c.RateLimitRPS)
	}
	return nil
}
