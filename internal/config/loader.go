package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "parley.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PARLEY_PORT")
	setString(&cfg.Server.CORSOrigin, "PARLEY_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PARLEY_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PARLEY_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PARLEY_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PARLEY_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "PARLEY_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LLM.URL, "PARLEY_LLM_URL")
	setString(&cfg.LLM.MasterKey, "PARLEY_LLM_MASTER_KEY")
	setString(&cfg.Logging.Level, "PARLEY_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PARLEY_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PARLEY_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "PARLEY_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "PARLEY_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "PARLEY_RATE_RPS")
	setInt(&cfg.Rate.Burst, "PARLEY_RATE_BURST")

	// Metering
	setInt64(&cfg.Metering.FreeMonthlyTokens, "PARLEY_METER_FREE_MONTHLY_TOKENS")
	setInt64(&cfg.Metering.PaidMonthlyTokens, "PARLEY_METER_PAID_MONTHLY_TOKENS")
	setInt64(&cfg.Metering.SelfKeyMonthlyTokens, "PARLEY_METER_SELFKEY_MONTHLY_TOKENS")
	setFloat64(&cfg.Metering.ProjectCeilingUSD, "PARLEY_METER_PROJECT_CEILING_USD")
	setFloat64(&cfg.Metering.Markup, "PARLEY_METER_MARKUP")
	setDuration(&cfg.Metering.CompletionTimeout, "PARLEY_METER_COMPLETION_TIMEOUT")
	setDuration(&cfg.Metering.SpendCacheTTL, "PARLEY_METER_SPEND_CACHE_TTL")

	// Agent runtime
	setDuration(&cfg.Agent.PollInterval, "PARLEY_AGENT_POLL_INTERVAL")
	setInt(&cfg.Agent.HistoryDepth, "PARLEY_AGENT_HISTORY_DEPTH")
	setInt(&cfg.Agent.ContextWindow, "PARLEY_AGENT_CONTEXT_WINDOW")
	setInt(&cfg.Agent.MaxTokens, "PARLEY_AGENT_MAX_TOKENS")
	setString(&cfg.Agent.DefaultModel, "PARLEY_AGENT_DEFAULT_MODEL")
	setInt(&cfg.Agent.PollBatchLimit, "PARLEY_AGENT_POLL_BATCH_LIMIT")

	// Discussion engine
	setInt(&cfg.Discussion.DefaultMaxRounds, "PARLEY_DISCUSSION_MAX_ROUNDS")
	setDuration(&cfg.Discussion.DefaultTimeout, "PARLEY_DISCUSSION_TIMEOUT")
	setDuration(&cfg.Discussion.AutoCloseTimeout, "PARLEY_DISCUSSION_AUTO_CLOSE")
	setDuration(&cfg.Discussion.AutoCloseSweep, "PARLEY_DISCUSSION_AUTO_CLOSE_SWEEP")

	// Cache
	setInt64(&cfg.Cache.MaxSizeMB, "PARLEY_CACHE_SIZE_MB")

	// Otel
	setBool(&cfg.Otel.Enabled, "PARLEY_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "PARLEY_OTEL_ENDPOINT")

	// Auth
	setBool(&cfg.Auth.Enabled, "PARLEY_AUTH_ENABLED")
	setString(&cfg.Auth.SecretKey, "PARLEY_AUTH_SECRET_KEY")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Metering.Markup < 1 {
		return errors.New("metering.markup must be >= 1")
	}
	if cfg.Metering.ProjectCeilingUSD <= 0 {
		return errors.New("metering.project_ceiling_usd must be > 0")
	}
	if cfg.Agent.PollInterval <= 0 {
		return errors.New("agent.poll_interval must be > 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
