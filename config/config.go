// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/kvorm/domain/schema"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig             `yaml:"server"`
	Store       StoreConfig              `yaml:"store"`
	Auth        AuthConfig               `yaml:"auth"`
	Logging     LoggingConfig            `yaml:"logging"`
	Metrics     MetricsConfig            `yaml:"metrics"`
	Collections map[string]schema.Schema `yaml:"collections"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// DynamicCollections accepts collection names that were never declared,
	// serving them schemaless. A config with no declared collections always
	// serves dynamically.
	DynamicCollections bool `yaml:"dynamic_collections"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend   string       `yaml:"backend"`   // "memory", "redis" or "sqlite"
	Namespace string       `yaml:"namespace"` // key prefix shared by all collections
	Redis     RedisConfig  `yaml:"redis,omitempty"`
	SQLite    SQLiteConfig `yaml:"sqlite,omitempty"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig configures bearer token authentication for the API routes.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	TokenHash string `yaml:"token_hash,omitempty"` // bcrypt hash of the accepted token
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	KVORM_STORE_BACKEND       - Store backend: memory, redis or sqlite (default: memory)
//	KVORM_STORE_NAMESPACE     - Key namespace (default: kvorm)
//	KVORM_REDIS_ADDR          - Redis address, required for the redis backend
//	KVORM_REDIS_PASSWORD      - Redis password
//	KVORM_REDIS_DB            - Redis database number (default: 0)
//	KVORM_SQLITE_PATH         - SQLite file path (default: kvorm.db)
//	KVORM_SERVER_HOST         - Server host (default: 0.0.0.0)
//	KVORM_SERVER_PORT         - Server port (default: 8080)
//	KVORM_DYNAMIC_COLLECTIONS - Serve undeclared collections (default: true when none declared)
//	KVORM_AUTH_ENABLED        - Require a bearer token on /api routes
//	KVORM_AUTH_TOKEN_HASH     - bcrypt hash of the accepted token
//	KVORM_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	KVORM_LOG_FORMAT          - Log format: json or console (default: json)
//	KVORM_METRICS_ENABLED     - Enable /metrics endpoint
//	KVORM_METRICS_PATH        - Metrics path (default: /metrics)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
// This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set KVORM_STORE_BACKEND")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("KVORM_STORE_BACKEND") != ""
}

// applyEnvOverrides applies KVORM_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("KVORM_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("KVORM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KVORM_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("KVORM_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("KVORM_DYNAMIC_COLLECTIONS"); v != "" {
		cfg.Server.DynamicCollections = parseBool(v)
	}

	// Store configuration
	if v := os.Getenv("KVORM_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("KVORM_STORE_NAMESPACE"); v != "" {
		cfg.Store.Namespace = v
	}
	if v := os.Getenv("KVORM_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("KVORM_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}
	if v := os.Getenv("KVORM_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.Redis.DB = n
		}
	}
	if v := os.Getenv("KVORM_SQLITE_PATH"); v != "" {
		cfg.Store.SQLite.Path = v
	}

	// Auth configuration
	if v := os.Getenv("KVORM_AUTH_ENABLED"); v != "" {
		cfg.Auth.Enabled = parseBool(v)
	}
	if v := os.Getenv("KVORM_AUTH_TOKEN_HASH"); v != "" {
		cfg.Auth.TokenHash = v
	}

	// Logging configuration
	if v := os.Getenv("KVORM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("KVORM_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("KVORM_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("KVORM_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.Namespace == "" {
		cfg.Store.Namespace = "kvorm"
	}
	if cfg.Store.SQLite.Path == "" {
		cfg.Store.SQLite.Path = "kvorm.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// A config that declares no collections serves everything dynamically,
	// matching a fresh install with no schemas yet.
	if len(cfg.Collections) == 0 {
		cfg.Server.DynamicCollections = true
	}
}

func validate(cfg *Config) error {
	validBackends := map[string]bool{"memory": true, "redis": true, "sqlite": true}
	if !validBackends[cfg.Store.Backend] {
		return fmt.Errorf("store.backend must be 'memory', 'redis' or 'sqlite', got %q", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "redis" && cfg.Store.Redis.Addr == "" {
		return fmt.Errorf("store.redis.addr is required when store.backend is 'redis'")
	}

	// Namespace and collection names become key segments; a separator inside
	// either would corrupt the key layout.
	if strings.Contains(cfg.Store.Namespace, ":") {
		return fmt.Errorf("store.namespace must not contain ':'")
	}
	for name, s := range cfg.Collections {
		if name == "" {
			return fmt.Errorf("collections: empty collection name")
		}
		if strings.Contains(name, ":") {
			return fmt.Errorf("collections.%s: name must not contain ':'", name)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("collections.%s: %w", name, err)
		}
	}

	if cfg.Auth.Enabled && cfg.Auth.TokenHash == "" {
		return fmt.Errorf("auth.token_hash is required when auth.enabled is true")
	}
	// Env expansion runs over the raw file and eats "$2a$10$..." literals.
	// A hash that survived intact always starts with "$2".
	if cfg.Auth.Enabled && !strings.HasPrefix(cfg.Auth.TokenHash, "$2") {
		return fmt.Errorf("auth.token_hash is not a bcrypt hash; set KVORM_AUTH_TOKEN_HASH or reference it as ${VAR} instead of pasting it into the file")
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
