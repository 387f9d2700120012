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
const DefaultConfigFile = "actionforge.yaml"

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
	setString(&cfg.Server.Port, "ACTIONFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "ACTIONFORGE_CORS_ORIGIN")
	setDuration(&cfg.Server.ShutdownTimeout, "ACTIONFORGE_SHUTDOWN_TIMEOUT")
	setString(&cfg.Server.APIKey, "ACTIONFORGE_API_KEY")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "ACTIONFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "ACTIONFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "ACTIONFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "ACTIONFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "ACTIONFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Intake, "ACTIONFORGE_NATS_INTAKE")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setDuration(&cfg.LiteLLM.ModelRefresh, "ACTIONFORGE_MODEL_REFRESH")
	setString(&cfg.Logging.Level, "ACTIONFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "ACTIONFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "ACTIONFORGE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "ACTIONFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "ACTIONFORGE_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "ACTIONFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "ACTIONFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "ACTIONFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "ACTIONFORGE_RATE_MAX_IDLE_TIME")
	setString(&cfg.Policy.DefaultProfile, "ACTIONFORGE_POLICY_DEFAULT")
	setString(&cfg.Policy.CustomDir, "ACTIONFORGE_POLICY_DIR")

	// Generation
	setString(&cfg.Generation.Model, "ACTIONFORGE_MODEL")
	setFloat64(&cfg.Generation.Temperature, "ACTIONFORGE_TEMPERATURE")
	setInt(&cfg.Generation.MaxTokens, "ACTIONFORGE_MAX_TOKENS")
	setDuration(&cfg.Generation.Timeout, "ACTIONFORGE_MODEL_TIMEOUT")

	// Orchestrator
	setInt(&cfg.Orchestrator.MaxParallel, "ACTIONFORGE_ORCH_MAX_PARALLEL")
	setInt(&cfg.Orchestrator.MinIngestLength, "ACTIONFORGE_ORCH_MIN_INGEST_LENGTH")
	setBool(&cfg.Orchestrator.AppendFollowups, "ACTIONFORGE_ORCH_APPEND_FOLLOWUPS")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "ACTIONFORGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.DirectoryTTL, "ACTIONFORGE_CACHE_DIRECTORY_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "ACTIONFORGE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "ACTIONFORGE_IDEMPOTENCY_TTL")

	// Telemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "ACTIONFORGE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "ACTIONFORGE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "ACTIONFORGE_OTEL_SAMPLE_RATE")

	// MCP
	setBool(&cfg.MCP.Enabled, "ACTIONFORGE_MCP_ENABLED")
	setString(&cfg.MCP.Port, "ACTIONFORGE_MCP_PORT")
	setString(&cfg.MCP.APIKey, "ACTIONFORGE_MCP_API_KEY")

	// Notification
	setString(&cfg.Notification.SlackWebhookURL, "ACTIONFORGE_SLACK_WEBHOOK_URL")
	setString(&cfg.Notification.DiscordWebhookURL, "ACTIONFORGE_DISCORD_WEBHOOK_URL")
}

// validate checks that required fields are set and values are in range.
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
	if cfg.LiteLLM.URL == "" {
		return errors.New("litellm.url is required")
	}
	if cfg.Generation.Model == "" {
		return errors.New("generation.model is required")
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		return errors.New("generation.temperature must be between 0 and 2")
	}
	if cfg.Generation.Timeout <= 0 {
		return errors.New("generation.timeout must be > 0")
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
	if cfg.Rate.RequestsPerSecond <= 0 {
		return errors.New("rate.requests_per_second must be > 0")
	}
	if cfg.Orchestrator.MaxParallel < 1 {
		return errors.New("orchestrator.max_parallel must be >= 1")
	}
	if cfg.Orchestrator.MinIngestLength < 0 {
		return errors.New("orchestrator.min_ingest_length must be >= 0")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be between 0 and 1")
	}
	if cfg.MCP.Enabled && cfg.MCP.Port == "" {
		return errors.New("mcp.port is required when mcp is enabled")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
