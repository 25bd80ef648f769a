// Package config provides configuration management for the Oddsly decision engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	OddsAPI  OddsAPIConfig  `mapstructure:"odds_api" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine" validate:"required"`
	Refresh  RefreshConfig  `mapstructure:"refresh" validate:"required"`
	Metrics  MetricsConfig  `mapstructure:"metrics" validate:"required"`
	Health   HealthConfig   `mapstructure:"health" validate:"required"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration.
// Optional: when Host is empty the engine runs against the in-memory store.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
}

// OddsAPIConfig represents the third-party odds provider configuration
type OddsAPIConfig struct {
	BaseURL            string  `mapstructure:"base_url" validate:"required,url"`
	APIKey             string  `mapstructure:"api_key"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second" validate:"required,gt=0"`
	MaxRetries         int     `mapstructure:"max_retries" validate:"gte=0"`
}

// EngineConfig centralizes the business constants for EV and Kelly staking.
// EVThreshold and MaxBetFraction are fixed business values; the defaults here
// are the only source of truth for them.
type EngineConfig struct {
	EVThreshold     float64 `mapstructure:"ev_threshold" validate:"required,gt=0,lt=1"`
	MaxBetFraction  float64 `mapstructure:"max_bet_fraction" validate:"required,gt=0,lte=1"`
	MinBetAmount    float64 `mapstructure:"min_bet_amount" validate:"gte=0"`
	LookbackDays    int     `mapstructure:"lookback_days" validate:"required,gt=0"`
	MinSampleSize   int     `mapstructure:"min_sample_size" validate:"required,gt=0"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
}

// RefreshConfig represents the background refresh scheduler configuration
type RefreshConfig struct {
	IntervalMinutes      int      `mapstructure:"interval_minutes" validate:"required,gt=0"`
	MaxConcurrentFetches int      `mapstructure:"max_concurrent_fetches" validate:"required,gt=0"`
	Sports               []string `mapstructure:"sports" validate:"required,min=1,sports"`
	Platforms            []string `mapstructure:"platforms" validate:"required,min=1"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig represents the health check server configuration
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// UsesDatabase reports whether a Postgres store is configured.
func (c *Config) UsesDatabase() bool {
	return c.Database.Host != ""
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// RefreshInterval returns the scheduler tick interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalMinutes) * time.Minute
}

// OddsAPITimeout returns the fetch timeout as a duration.
func (c *Config) OddsAPITimeout() time.Duration {
	return time.Duration(c.OddsAPI.TimeoutSeconds) * time.Second
}
