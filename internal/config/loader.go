// Package config provides configuration management for the Oddsly decision engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// Set environment variable prefix
	v.SetEnvPrefix("ODDSLY")

	// Enable automatic binding of environment variables
	v.AutomaticEnv()

	// Replace dots with underscores in environment variable names
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	// Read and expand the configuration file if it exists
	if data, err := os.ReadFile(configPath); err == nil {
		// Expand environment variables in the configuration (${VAR} syntax)
		expanded := os.ExpandEnv(string(data))
		if err := v.ReadConfig(bytes.NewBuffer([]byte(expanded))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	// If the file doesn't exist, continue with defaults and environment variables

	// Unmarshal configuration into Config struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults registers defaults for every optional knob. The engine defaults
// (ev_threshold 0.565, max_bet_fraction 0.05) are established business values;
// do not change them here without a product decision.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oddsly-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("odds_api.base_url", "https://api.the-odds-api.com/v4")
	v.SetDefault("odds_api.timeout_seconds", 15)
	v.SetDefault("odds_api.rate_limit_per_second", 5.0)
	v.SetDefault("odds_api.max_retries", 3)

	v.SetDefault("engine.ev_threshold", 0.565)
	v.SetDefault("engine.max_bet_fraction", 0.05)
	v.SetDefault("engine.min_bet_amount", 1.0)
	v.SetDefault("engine.lookback_days", 90)
	v.SetDefault("engine.min_sample_size", 5)
	v.SetDefault("engine.cache_ttl_seconds", 60)

	v.SetDefault("refresh.interval_minutes", 30)
	v.SetDefault("refresh.max_concurrent_fetches", 6)
	v.SetDefault("refresh.sports", []string{"basketball_nba"})
	v.SetDefault("refresh.platforms", []string{"prizepicks"})

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("health.port", 8081)
}
