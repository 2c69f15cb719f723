// Package config loads runtime configuration from the environment.
//
// Business settings (week start day, counters, rates) are not configured
// here: they live in the settings table and are edited through the API or
// the CLI.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cinemacentral/borderel/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

type Config struct {
	// Database
	DBDriver string
	DBDSN    string

	// HTTP
	HTTPPort int

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration. Call godotenv.Load first to pick up a .env
// file.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("HTTP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("HTTP_PORT must be a number: %w", err)
	}

	logDefaults := logger.DefaultConfig()
	cfg := &Config{
		DBDriver:      getEnv("DB_DRIVER", DriverSQLite),
		DBDSN:         os.Getenv("DB_DSN"),
		HTTPPort:      port,
		LogLevel:      getEnv("LOG_LEVEL", logDefaults.Level),
		LogFormat:     getEnv("LOG_FORMAT", logDefaults.Format),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", logDefaults.TimeFormat),
		LogOutput:     getEnv("LOG_OUTPUT", logDefaults.Output),
	}
	if cfg.DBDriver == DriverSQLite && cfg.DBDSN == "" {
		cfg.DBDSN = "borderel.db"
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverMySQL:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for the mysql driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.DBDriver)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config.
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
