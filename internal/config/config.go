// Package config provides gateway configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Auth store backends.
const (
	BackendLocal = "local"
	BackendMongo = "mongo"
)

// Config is the full gateway configuration.
type Config struct {
	// Port the HTTP server listens on.
	Port int `json:"port"`
	// Host the HTTP server binds to.
	Host string `json:"host"`
	// EnableCORS allows cross-origin API and websocket access.
	EnableCORS bool `json:"enableCors"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR, FATAL.
	LogLevel string `json:"logLevel"`
	// LogPretty enables human-readable console logs.
	LogPretty bool `json:"logPretty"`

	Auth   AuthConfig   `json:"auth"`
	Driver DriverConfig `json:"driver"`
}

// AuthConfig selects and parameterizes the auth store backend.
type AuthConfig struct {
	// Backend is "local" (filesystem) or "mongo" (durable store).
	Backend string `json:"backend"`
	// LocalRoot is the auth directory root for the local backend.
	LocalRoot string `json:"localRoot"`
	// Purge is the teardown credential policy: auto, always, or never.
	// auto defers to the backend default (local purges, mongo keeps).
	Purge string `json:"purge"`

	MongoURI        string `json:"mongoUri"`
	MongoDatabase   string `json:"mongoDatabase"`
	MongoCollection string `json:"mongoCollection"`
}

// DriverConfig parameterizes the dev session driver.
type DriverConfig struct {
	// AutoPairMillis simulates the QR scan after this delay. Zero leaves
	// fresh sessions pending.
	AutoPairMillis int `json:"autoPairMillis"`
}

// AutoPair returns the auto-pair delay as a duration.
func (d DriverConfig) AutoPair() time.Duration {
	return time.Duration(d.AutoPairMillis) * time.Millisecond
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port:       3000,
		Host:       "0.0.0.0",
		EnableCORS: true,
		LogLevel:   "INFO",
		Auth: AuthConfig{
			Backend:       BackendLocal,
			LocalRoot:     "wa_auth",
			Purge:         "auto",
			MongoDatabase: "wagateway",
		},
		Driver: DriverConfig{
			AutoPairMillis: 0,
		},
	}
}

// Load builds the configuration from defaults, an optional JSONC config
// file, and environment variable overrides, in that priority order.
func Load() (*Config, error) {
	cfg := Default()

	path := os.Getenv("WAGATEWAY_CONFIG")
	if path == "" {
		path = "wagateway.jsonc"
	}
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges one JSONC config file into cfg. A missing file is fine.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if host := os.Getenv("WAGATEWAY_HOST"); host != "" {
		cfg.Host = host
	}
	if level := os.Getenv("WAGATEWAY_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if backend := os.Getenv("WAGATEWAY_AUTH_BACKEND"); backend != "" {
		cfg.Auth.Backend = backend
	}
	if root := os.Getenv("WAGATEWAY_AUTH_ROOT"); root != "" {
		cfg.Auth.LocalRoot = root
	}
	if purge := os.Getenv("WAGATEWAY_AUTH_PURGE"); purge != "" {
		cfg.Auth.Purge = purge
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.Auth.MongoURI = uri
	}
	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		cfg.Auth.MongoDatabase = db
	}
	if coll := os.Getenv("MONGO_COLLECTION"); coll != "" {
		cfg.Auth.MongoCollection = coll
	}
	if pair := os.Getenv("WAGATEWAY_AUTO_PAIR_MS"); pair != "" {
		if ms, err := strconv.Atoi(pair); err == nil {
			cfg.Driver.AutoPairMillis = ms
		}
	}
}

// validate rejects configurations the server cannot start with.
func (c *Config) validate() error {
	switch c.Auth.Backend {
	case BackendLocal:
		if c.Auth.LocalRoot == "" {
			return fmt.Errorf("auth.localRoot is required for the local backend")
		}
	case BackendMongo:
		if c.Auth.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown auth backend %q", c.Auth.Backend)
	}

	switch c.Auth.Purge {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("auth.purge must be auto, always, or never, got %q", c.Auth.Purge)
	}

	return nil
}
