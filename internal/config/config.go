// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	BotToken           string  `env:"BOT_TOKEN,required"`
	AdminUserIDs       []int64 `env:"ADMIN_USER_IDS" envSeparator:","`
	MaxDurationMinutes int     `env:"MAX_DURATION_MINUTES" envDefault:"120"`
	MaxFileSizeMB      int     `env:"MAX_FILE_SIZE_MB" envDefault:"2048"`
	LedgerPath         string  `env:"LEDGER_PATH" envDefault:"user_downloads.json"`
	DownloadDir        string  `env:"DOWNLOAD_DIR" envDefault:"downloads"`
	LogLevel           string  `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	logLevel := strings.ToLower(c.LogLevel)
	isValidLevel := false
	for _, level := range validLogLevels {
		if logLevel == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("invalid log level %q, must be one of: %v", c.LogLevel, validLogLevels)
	}

	if c.MaxDurationMinutes <= 0 {
		return fmt.Errorf("MAX_DURATION_MINUTES must be positive, got: %d", c.MaxDurationMinutes)
	}

	if c.MaxFileSizeMB <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got: %d", c.MaxFileSizeMB)
	}

	if c.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH cannot be empty")
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR cannot be empty")
	}

	return nil
}

// IsAdmin reports whether the given user is listed as an administrator.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
