package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"loanapi/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable the service reads.
const EnvPrefix = "LOANAPI_"

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables; prefixed names win over legacy ones
	if err := loadLegacyEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	if err := loadFromEnvironment(config); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadDotEnv populates the process environment from a dotenv file. Variables that are
// already set win over the file. A missing file is not an error; it reports false.
func LoadDotEnv(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return true, nil
}

// deprecatedConfig mirrors relocated config fields for detecting stale operator configs.
type deprecatedConfig struct {
	Security struct {
		RateLimit interface{} `yaml:"rate_limit"`
	} `yaml:"security"`
	Cache struct {
		Redis interface{} `yaml:"redis"`
	} `yaml:"cache"`
	Storage struct {
		Database struct {
			Driver string `yaml:"driver"`
		} `yaml:"database"`
	} `yaml:"storage"`
	Logging struct {
		MaxSize int `yaml:"max_size"`
	} `yaml:"logging"`
}

// warnDeprecatedKeys logs a warning for each relocated config key found in the YAML data.
// The service continues to start normally - these keys are silently ignored by the main decoder.
func warnDeprecatedKeys(data []byte) {
	var dep deprecatedConfig
	if err := yaml.Unmarshal(data, &dep); err != nil {
		return
	}
	if dep.Security.RateLimit != nil {
		slog.Warn("Config key has moved; use the top-level rate_limit section.", "config_key", "security.rate_limit")
	}
	if dep.Cache.Redis != nil {
		slog.Warn("Config key has moved; use the top-level redis section.", "config_key", "cache.redis")
	}
	if dep.Storage.Database.Driver != "" {
		slog.Warn("Config key is no longer used; the driver follows storage.type.", "config_key", "storage.database.driver")
	}
	if dep.Logging.MaxSize != 0 {
		slog.Warn("Config key is no longer supported; rotate logs/app.log externally.", "config_key", "logging.max_size")
	}
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	warnDeprecatedKeys(data)
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// envLoader collects the first malformed variable so a typo such as
// LOANAPI_RATE_LIMIT_MAX=three fails startup instead of silently using the default.
type envLoader struct {
	prefix string
	err    error
}

func (l *envLoader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(l.prefix + name)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (l *envLoader) str(name string, dst *string) {
	if v, ok := l.lookup(name); ok {
		*dst = v
	}
}

func (l *envLoader) int(name string, dst *int) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.fail(name, v, err)
		return
	}
	*dst = n
}

func (l *envLoader) bool(name string, dst *bool) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		l.fail(name, v, err)
		return
	}
	*dst = b
}

// duration accepts Go durations ("90s", "1m") and bare integers as seconds.
func (l *envLoader) duration(name string, dst *time.Duration) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(name, v, err)
		return
	}
	*dst = d
}

func (l *envLoader) float(name string, dst *float64) {
	v, ok := l.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.fail(name, v, err)
		return
	}
	*dst = f
}

func (l *envLoader) fail(name, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("%s%s=%q: %w", l.prefix, name, value, err)
	}
}

// legacyEnvKeys are the unprefixed config.env names older deployments set.
var legacyEnvKeys = []string{"NODE_ENV", "PORT", "DATABASE", "DATABASE_PASSWORD", "RATE_LIMIT_MAX", "LOG_PATH"}

// loadLegacyEnvironment reads the unprefixed config.env keys. DATABASE holds the
// connection string, with <PASSWORD> replaced by DATABASE_PASSWORD.
func loadLegacyEnvironment(config *models.Config) error {
	env := &envLoader{}
	for _, key := range legacyEnvKeys {
		if _, ok := env.lookup(key); ok {
			slog.Warn("Unprefixed environment variable is deprecated; use the "+EnvPrefix+" form.", "env_var", key)
		}
	}

	env.str("NODE_ENV", &config.Environment)
	env.int("PORT", &config.Server.Port)
	env.str("DATABASE", &config.Storage.Database.DSN)
	env.str("DATABASE_PASSWORD", &config.Storage.Database.Password)
	env.int("RATE_LIMIT_MAX", &config.RateLimit.MaxRequests)
	env.str("LOG_PATH", &config.Logging.FilePath)

	return env.err
}

// loadFromEnvironment loads configuration from LOANAPI_ environment variables
func loadFromEnvironment(config *models.Config) error {
	env := &envLoader{prefix: EnvPrefix}

	env.str("ENV", &config.Environment)

	// Server configuration
	env.int("PORT", &config.Server.Port)
	env.str("HOST", &config.Server.Host)
	env.duration("READ_TIMEOUT", &config.Server.ReadTimeout)
	env.duration("WRITE_TIMEOUT", &config.Server.WriteTimeout)
	env.duration("IDLE_TIMEOUT", &config.Server.IdleTimeout)
	env.bool("TLS_ENABLED", &config.Server.TLSEnabled)
	env.str("TLS_CERT_FILE", &config.Server.TLSCertFile)
	env.str("TLS_KEY_FILE", &config.Server.TLSKeyFile)

	// Storage configuration
	env.str("STORAGE_TYPE", &config.Storage.Type)
	env.str("STORAGE_PATH", &config.Storage.Path)
	env.str("DATABASE_DSN", &config.Storage.Database.DSN)
	env.str("DATABASE_PASSWORD", &config.Storage.Database.Password)
	env.str("DATABASE_NAME", &config.Storage.Database.Name)
	env.int("DATABASE_MAX_OPEN_CONNS", &config.Storage.Database.MaxOpenConns)
	env.int("DATABASE_MAX_IDLE_CONNS", &config.Storage.Database.MaxIdleConns)
	env.duration("DATABASE_CONNECT_TIMEOUT", &config.Storage.Database.ConnectTimeout)

	// Rate limiting
	env.bool("RATE_LIMIT_ENABLED", &config.RateLimit.Enabled)
	env.str("RATE_LIMIT_BACKEND", &config.RateLimit.Backend)
	env.int("RATE_LIMIT_MAX", &config.RateLimit.MaxRequests)
	env.duration("RATE_LIMIT_WINDOW", &config.RateLimit.Window)
	env.duration("RATE_LIMIT_CLEANUP_INTERVAL", &config.RateLimit.CleanupInterval)
	env.bool("RATE_LIMIT_TRUST_PROXY", &config.RateLimit.TrustProxyHeaders)

	// Redis configuration
	env.str("REDIS_ADDR", &config.Redis.Addr)
	env.str("REDIS_PASSWORD", &config.Redis.Password)
	env.int("REDIS_DB", &config.Redis.DB)
	env.int("REDIS_POOL_SIZE", &config.Redis.PoolSize)

	// Logging configuration
	env.str("LOG_LEVEL", &config.Logging.Level)
	env.str("LOG_FORMAT", &config.Logging.Format)
	env.str("LOG_OUTPUT", &config.Logging.Output)
	env.str("LOG_FILE_PATH", &config.Logging.FilePath)

	// Metrics configuration
	env.bool("METRICS_ENABLED", &config.Metrics.Enabled)
	env.str("METRICS_PATH", &config.Metrics.Path)
	env.int("METRICS_PORT", &config.Metrics.Port)

	// Tracing configuration
	env.bool("TRACING_ENABLED", &config.Observability.Tracing.Enabled)
	env.str("TRACING_EXPORTER", &config.Observability.Tracing.Exporter)
	env.str("OTLP_ENDPOINT", &config.Observability.Tracing.OTLPEndpoint)
	env.float("TRACING_SAMPLE_RATE", &config.Observability.Tracing.SampleRate)

	return env.err
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	// Example database configuration; the password comes from LOANAPI_DATABASE_PASSWORD
	config.Storage.Database.DSN = "mongodb+srv://loans:" + models.PasswordPlaceholder + "@cluster0.example.net/?retryWrites=true"

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
