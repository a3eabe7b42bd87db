// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every service component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, rate limit, etc.)
// - Defaults that run the service out of the box with no external dependencies
// - Validation to catch misconfigurations before the listener is bound
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Storage type constants
const (
	StorageTypeJSON     = "json"
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
	StorageTypeMySQL    = "mysql"
	StorageTypeMongo    = "mongo"
)

// Rate limiter backend constants
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// Environment names
const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)

// PasswordPlaceholder is substituted in the database DSN with the configured password,
// so the DSN can be committed without the credential.
const PasswordPlaceholder = "<PASSWORD>"

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Environment: "production" suppresses debug logging
// - Server: HTTP server and network settings
// - Storage: loan store backend selection and connection settings
// - RateLimit: fixed-window limiter settings
// - Redis: connection used by the redis rate limiter backend
// - Logging: log sink and output configuration
// - Metrics / Observability: Prometheus metrics and tracing
type Config struct {
	Environment   string              `yaml:"environment" json:"environment"`
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Redis         RedisConfig         `yaml:"redis" json:"redis"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	Password        string        `yaml:"password" json:"-"`
	Name            string        `yaml:"name" json:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// ResolvedDSN returns the DSN with PasswordPlaceholder replaced by Password.
func (dc DatabaseConfig) ResolvedDSN() string {
	if dc.Password == "" {
		return dc.DSN
	}
	return strings.ReplaceAll(dc.DSN, PasswordPlaceholder, dc.Password)
}

type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" json:"enabled"`
	Backend           string        `yaml:"backend" json:"backend"`
	MaxRequests       int           `yaml:"max_requests" json:"max_requests"`
	Window            time.Duration `yaml:"window" json:"window"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	TrustProxyHeaders bool          `yaml:"trust_proxy_headers" json:"trust_proxy_headers"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"-"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration that runs locally with no external services:
// in-memory storage, 3 requests per minute per client, line logs to logs/app.log and the
// console, debug logging on.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentDevelopment,
		Server: ServerConfig{
			Port:         3000,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Path: "./data/loans.json",
			Database: DatabaseConfig{
				Name:            "loans",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnectTimeout:  10 * time.Second,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Backend:         RateLimitBackendMemory,
			MaxRequests:     3,
			Window:          time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		Logging: LoggingConfig{
			Level:    "debug",
			Format:   "line",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "loanapi",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

// IsProduction reports whether debug logging must be suppressed.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if c.RateLimit.Enabled && c.RateLimit.Backend == RateLimitBackendRedis && c.Redis.Addr == "" {
		return errors.New("invalid redis config: address is required for the redis rate limit backend")
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypeJSON:
		if stc.Path == "" {
			return errors.New("path is required for JSON storage")
		}
		return nil
	case StorageTypePostgres, StorageTypeSQLite, StorageTypeMySQL, StorageTypeMongo:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", stc.Type)
		}
		if stc.Type == StorageTypeMongo && stc.Database.Name == "" {
			return errors.New("database name is required for mongo storage")
		}
		return nil
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
}

func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}
	if rc.MaxRequests <= 0 {
		return errors.New("max requests must be positive")
	}
	if rc.Window < time.Second {
		return errors.New("window must be at least one second")
	}
	if rc.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	switch rc.Backend {
	case RateLimitBackendMemory, RateLimitBackendRedis:
	default:
		return fmt.Errorf("invalid rate limit backend: %s", rc.Backend)
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	switch strings.ToLower(lc.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	switch lc.Format {
	case "line", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	switch lc.Output {
	case "both", "file", "stdout", "stderr":
	default:
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if (lc.Output == "file" || lc.Output == "both") && lc.FilePath == "" {
		return errors.New("file path is required when output includes a file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}
