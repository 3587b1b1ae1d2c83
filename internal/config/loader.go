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
const DefaultConfigFile = "agentforge.yaml"

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
	setString(&cfg.Server.Port, "AGENTFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTFORGE_CORS_ORIGIN")
	setString(&cfg.Server.MCPAddr, "AGENTFORGE_MCP_ADDR")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setDuration(&cfg.LiteLLM.Timeout, "AGENTFORGE_LITELLM_TIMEOUT")
	setString(&cfg.Logging.Level, "AGENTFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "AGENTFORGE_LOG_ASYNC")
	setString(&cfg.Auth.APIKeyHash, "AGENTFORGE_API_KEY_HASH")
	setInt(&cfg.Runtime.MaxIterations, "AGENTFORGE_MAX_ITERATIONS")
	setInt64(&cfg.Runtime.MaxConcurrent, "AGENTFORGE_MAX_CONCURRENT")
	setFloat64(&cfg.Runtime.DefaultBudget, "AGENTFORGE_DEFAULT_BUDGET")
	setFloat64(&cfg.Runtime.DefaultHILBudget, "AGENTFORGE_DEFAULT_HIL_BUDGET")
	setInt(&cfg.Runtime.DefaultHILCount, "AGENTFORGE_DEFAULT_HIL_COUNT")
	setInt(&cfg.Runtime.SummaryLimit, "AGENTFORGE_SUMMARY_LIMIT")
	setInt64(&cfg.Cache.MaxSizeMB, "AGENTFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "AGENTFORGE_CACHE_TTL")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.Telemetry.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.Telemetry.Insecure, "AGENTFORGE_OTEL_INSECURE")
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
	if cfg.Runtime.MaxIterations < 1 {
		return errors.New("runtime.max_iterations must be >= 1")
	}
	if cfg.Runtime.MaxConcurrent < 1 {
		return errors.New("runtime.max_concurrent must be >= 1")
	}
	if cfg.Runtime.SummaryLimit < 0 {
		return errors.New("runtime.summary_limit must be >= 0")
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
