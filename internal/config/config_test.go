package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Temian1/oddsly/internal/models"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "oddsly-engine",
			Environment: "development",
			LogLevel:    "info",
		},
		OddsAPI: OddsAPIConfig{
			BaseURL:            "https://api.the-odds-api.com/v4",
			APIKey:             "test-key",
			TimeoutSeconds:     15,
			RateLimitPerSecond: 5,
			MaxRetries:         3,
		},
		Engine: EngineConfig{
			EVThreshold:     0.565,
			MaxBetFraction:  0.05,
			MinBetAmount:    1,
			LookbackDays:    90,
			MinSampleSize:   5,
			CacheTTLSeconds: 60,
		},
		Refresh: RefreshConfig{
			IntervalMinutes:      30,
			MaxConcurrentFetches: 6,
			Sports:               []string{"basketball_nba", "icehockey_nhl"},
			Platforms:            []string{"prizepicks"},
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Health:  HealthConfig{Port: 8081},
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	assert.Equal(t, "oddsly-engine", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, 0.565, cfg.Engine.EVThreshold)
	assert.Equal(t, 0.05, cfg.Engine.MaxBetFraction)
	assert.Equal(t, 90, cfg.Engine.LookbackDays)
	assert.Equal(t, 5, cfg.Engine.MinSampleSize)
	assert.Equal(t, 30, cfg.Refresh.IntervalMinutes)
	assert.Equal(t, 6, cfg.Refresh.MaxConcurrentFetches)
	assert.Equal(t, []string{"basketball_nba"}, cfg.Refresh.Sports)
	assert.False(t, cfg.UsesDatabase())

	assert.NoError(t, Validate(cfg))
}

func TestLoadExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_ODDS_API_KEY", "secret-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "odds_api:\n  api_key: ${TEST_ODDS_API_KEY}\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assert.Equal(t, "secret-from-env", cfg.OddsAPI.APIKey)
}

func TestValidateRejectsBadFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad environment", func(c *Config) { c.App.Environment = "prod" }},
		{"bad log level", func(c *Config) { c.App.LogLevel = "verbose" }},
		{"bad sport key", func(c *Config) { c.Refresh.Sports = []string{"Basketball NBA"} }},
		{"empty sports", func(c *Config) { c.Refresh.Sports = nil }},
		{"ev threshold out of range", func(c *Config) { c.Engine.EVThreshold = 1.5 }},
		{"zero interval", func(c *Config) { c.Refresh.IntervalMinutes = 0 }},
		{"bad base url", func(c *Config) { c.OddsAPI.BaseURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			assert.True(t, errors.Is(err, models.ErrConfiguration), "got: %v", err)
		})
	}
}

func TestValidateCrossField(t *testing.T) {
	t.Run("partial database config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database.Host = "localhost"

		err := Validate(cfg)
		assert.True(t, errors.Is(err, models.ErrConfiguration))
	})

	t.Run("complete database config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Database = DatabaseConfig{
			Host: "localhost", Port: 5432, Name: "oddsly", User: "oddsly",
			Password: "pw", SSLMode: "disable", MaxConnections: 10,
		}

		assert.NoError(t, Validate(cfg))
		assert.True(t, cfg.UsesDatabase())
		assert.Equal(t, "postgres://oddsly:pw@localhost:5432/oddsly?sslmode=disable", cfg.GetDatabaseDSN())
	})

	t.Run("interval must exceed fetch timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Refresh.IntervalMinutes = 1
		cfg.OddsAPI.TimeoutSeconds = 120

		err := Validate(cfg)
		assert.True(t, errors.Is(err, models.ErrConfiguration))
	})
}
