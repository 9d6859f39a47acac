package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Metering.FreeMonthlyTokens != 200_000 {
		t.Errorf("expected free cap 200000, got %d", cfg.Metering.FreeMonthlyTokens)
	}
	if cfg.Metering.Markup != 1.3 {
		t.Errorf("expected markup 1.3, got %v", cfg.Metering.Markup)
	}
	if cfg.Agent.PollInterval != 3*time.Second {
		t.Errorf("expected poll interval 3s, got %v", cfg.Agent.PollInterval)
	}
	if !cfg.Auth.Enabled {
		t.Error("expected auth enabled by default")
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAMLOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
logging:
  level: "debug"
metering:
  project_ceiling_usd: 50.0
discussion:
  default_max_rounds: 3
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Metering.ProjectCeilingUSD != 50.0 {
		t.Errorf("expected ceiling 50, got %v", cfg.Metering.ProjectCeilingUSD)
	}
	if cfg.Discussion.DefaultMaxRounds != 3 {
		t.Errorf("expected max rounds 3, got %d", cfg.Discussion.DefaultMaxRounds)
	}
	// Untouched values keep their defaults.
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected default max_conns, got %d", cfg.Postgres.MaxConns)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
logging:
  level: "debug"
`)

	t.Setenv("PARLEY_PORT", "7070")
	t.Setenv("PARLEY_LOG_LEVEL", "warn")
	t.Setenv("PARLEY_BREAKER_TIMEOUT", "1m")
	t.Setenv("PARLEY_METER_MARKUP", "1.5")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should win over yaml: got port %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should win over yaml: got level %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Metering.Markup != 1.5 {
		t.Errorf("expected markup 1.5, got %v", cfg.Metering.Markup)
	}
}

func TestInvalidEnvValuesIgnored(t *testing.T) {
	t.Setenv("PARLEY_PG_MAX_CONNS", "notanumber")
	t.Setenv("PARLEY_BREAKER_TIMEOUT", "invalid-duration")
	t.Setenv("PARLEY_RATE_RPS", "abc")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("invalid env should keep default, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("invalid env should keep default, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Rate.RequestsPerSecond != 50 {
		t.Errorf("invalid env should keep default, got %v", cfg.Rate.RequestsPerSecond)
	}
}

func TestDatabaseURLAlias(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/parley")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Postgres.DSN != "postgres://u:p@db:5432/parley" {
		t.Errorf("expected DATABASE_URL to set DSN, got %s", cfg.Postgres.DSN)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name  string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"empty dsn", func(c *Config) { c.Postgres.DSN = "" }},
		{"markup below one", func(c *Config) { c.Metering.Markup = 0.5 }},
		{"zero poll interval", func(c *Config) { c.Agent.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestMissingYAMLUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom with missing file should not error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected defaults, got port %s", cfg.Server.Port)
	}
}
