package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "licensed.yaml"

// CLIFlags holds command-line overrides. Nil fields were not set.
type CLIFlags struct {
	ConfigPath *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	return load(yamlPath, CLIFlags{})
}

// LoadWithCLI loads the configuration with CLI flags applied last.
// It returns the resolved YAML path alongside the config.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}
	cfg, err := load(path, flags)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func load(yamlPath string, flags CLIFlags) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// ParseFlags parses server command-line flags. Only flags that were
// explicitly passed are returned as non-nil.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("licensed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var configPath, port, logLevel, dsn, natsURL string
	fs.StringVar(&configPath, "config", "", "path to YAML config file")
	fs.StringVar(&configPath, "c", "", "path to YAML config file (shorthand)")
	fs.StringVar(&port, "port", "", "HTTP listen port")
	fs.StringVar(&port, "p", "", "HTTP listen port (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&dsn, "dsn", "", "PostgreSQL DSN")
	fs.StringVar(&natsURL, "nats-url", "", "NATS server URL")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, err
	}

	var out CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			out.ConfigPath = &configPath
		case "port", "p":
			out.Port = &port
		case "log-level":
			out.LogLevel = &logLevel
		case "dsn":
			out.DSN = &dsn
		case "nats-url":
			out.NatsURL = &natsURL
		}
	})
	return out, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator supplied
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
	setString(&cfg.Server.Port, "LICENSED_PORT")
	setString(&cfg.Server.CORSOrigin, "LICENSED_CORS_ORIGIN")
	setDuration(&cfg.Server.RequestTimeout, "LICENSED_REQUEST_TIMEOUT")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "LICENSED_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "LICENSED_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "LICENSED_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "LICENSED_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "LICENSED_PG_HEALTH_CHECK")
	setString(&cfg.Postgres.ApplicationName, "LICENSED_PG_APPLICATION_NAME")
	setDuration(&cfg.Postgres.LockTimeout, "LICENSED_PG_LOCK_TIMEOUT")

	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Enabled, "LICENSED_NATS_ENABLED")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.Service, "LICENSED_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "LICENSED_LOG_ASYNC")

	setBool(&cfg.Auth.Enabled, "LICENSED_AUTH_ENABLED")
	setInt(&cfg.Auth.BcryptCost, "LICENSED_BCRYPT_COST")
	setDuration(&cfg.Auth.CacheTTL, "LICENSED_AUTH_CACHE_TTL")

	setString(&cfg.License.KeyPrefix, "LICENSED_KEY_PREFIX")
	setInt(&cfg.License.KeyBytes, "LICENSED_KEY_BYTES")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "LICENSED_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Backend, "LICENSED_CACHE_L2_BACKEND")
	setString(&cfg.Cache.L2Bucket, "LICENSED_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "LICENSED_CACHE_L2_TTL")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "LICENSED_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "LICENSED_IDEMPOTENCY_TTL")

	setFloat64(&cfg.Rate.RequestsPerSecond, "LICENSED_RATE_RPS")
	setInt(&cfg.Rate.Burst, "LICENSED_RATE_BURST")
	setDuration(&cfg.Rate.MaxIdleTime, "LICENSED_RATE_MAX_IDLE_TIME")

	setInt(&cfg.Breaker.MaxFailures, "LICENSED_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "LICENSED_BREAKER_TIMEOUT")

	// OpenTelemetry
	setBool(&cfg.OTel.Enabled, "LICENSED_OTEL_ENABLED")
	setString(&cfg.OTel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTel.Insecure, "LICENSED_OTEL_INSECURE")
	setFloat64(&cfg.OTel.SampleRatio, "LICENSED_OTEL_SAMPLE_RATIO")
	setString(&cfg.OTel.MetricsExporter, "LICENSED_OTEL_METRICS_EXPORTER")
}

// applyCLI overlays explicitly passed CLI flags onto cfg.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.Port != nil {
		cfg.Server.Port = *flags.Port
	}
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Postgres.LockTimeout < 0 {
		return errors.New("postgres.lock_timeout must not be negative")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.License.KeyBytes < 8 {
		return errors.New("license.key_bytes must be >= 8")
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	switch cfg.Cache.L2Backend {
	case "nats", "redis", "none":
	default:
		return fmt.Errorf("cache.l2_backend must be nats, redis or none, got %q", cfg.Cache.L2Backend)
	}
	switch cfg.OTel.MetricsExporter {
	case "prometheus", "otlp", "none":
	default:
		return fmt.Errorf("otel.metrics_exporter must be prometheus, otlp or none, got %q", cfg.OTel.MetricsExporter)
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
