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
const DefaultConfigFile = "cipherstudio.yaml"

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
	setString(&cfg.Server.Port, "CIPHERSTUDIO_PORT")
	setString(&cfg.Server.CORSOrigin, "CIPHERSTUDIO_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "CIPHERSTUDIO_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "CIPHERSTUDIO_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "CIPHERSTUDIO_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "CIPHERSTUDIO_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "CIPHERSTUDIO_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")

	setBool(&cfg.Auth.Enabled, "CIPHERSTUDIO_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "CIPHERSTUDIO_JWT_SECRET")
	setInt(&cfg.Auth.BcryptCost, "CIPHERSTUDIO_BCRYPT_COST")
	setDuration(&cfg.Auth.AccessTokenExpiry, "CIPHERSTUDIO_ACCESS_TOKEN_EXPIRY")
	setDuration(&cfg.Auth.RefreshTokenExpiry, "CIPHERSTUDIO_REFRESH_TOKEN_EXPIRY")
	setString(&cfg.Auth.DefaultAdminEmail, "CIPHERSTUDIO_ADMIN_EMAIL")
	setString(&cfg.Auth.DefaultAdminPass, "CIPHERSTUDIO_ADMIN_PASS")

	setString(&cfg.Logging.Level, "CIPHERSTUDIO_LOG_LEVEL")
	setString(&cfg.Logging.Service, "CIPHERSTUDIO_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "CIPHERSTUDIO_LOG_ASYNC")

	setInt64(&cfg.Cache.L1MaxSizeMB, "CIPHERSTUDIO_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "CIPHERSTUDIO_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "CIPHERSTUDIO_CACHE_L2_TTL")

	setBool(&cfg.Autosave.Enabled, "CIPHERSTUDIO_AUTOSAVE_ENABLED")
	setDuration(&cfg.Autosave.Interval, "CIPHERSTUDIO_AUTOSAVE_INTERVAL")

	setFloat64(&cfg.Rate.RequestsPerSecond, "CIPHERSTUDIO_RATE_RPS")
	setInt(&cfg.Rate.Burst, "CIPHERSTUDIO_RATE_BURST")

	setBool(&cfg.Otel.Enabled, "CIPHERSTUDIO_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "CIPHERSTUDIO_OTEL_ENDPOINT")
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
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required when auth is enabled")
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return errors.New("auth.bcrypt_cost must be between 4 and 31")
	}
	if cfg.Autosave.Enabled && cfg.Autosave.Interval < time.Second {
		return errors.New("autosave.interval must be at least 1s")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
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
