package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-record-service/internal/store"
)

// Store backends.
const (
	BackendMongoDB  = store.BackendMongoDB
	BackendInMemory = store.BackendInMemory
)

// Config holds service configuration loaded from .env, YAML and the environment.
type Config struct {
	ServerPort string

	StoreBackend        string // "mongodb" or "in_memory"
	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	MongoConnectTimeout time.Duration
	MongoHealthInterval time.Duration // 0 disables the periodic ping

	RequestTimeout time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Store struct {
		Backend string `yaml:"backend"`
	} `yaml:"store"`

	MongoDB struct {
		URI            string `yaml:"uri"`
		Database       string `yaml:"database"`
		Collection     string `yaml:"collection"`
		ConnectTimeout string `yaml:"connect_timeout"`
		HealthInterval string `yaml:"health_interval"`
	} `yaml:"mongodb"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	MongoURI string `yaml:"mongodb_uri"`
}

// Load reads configuration relative to the working directory. See LoadFrom.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom reads dir/.env (optional, never overrides the environment),
// dir/config/{ENV_NAME}.yaml (default dev, optional) and dir/config/secrets.yaml.
// Environment variables win over file values. The MongoDB URI comes from
// MONGODB_URI, mongodb.uri or secrets.yaml mongodb_uri, in that order.
func LoadFrom(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	configPath := filepath.Join(dir, "config", env+".yaml")
	if err := readYAML(configPath, &fc); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.StoreBackend = strings.ToLower(firstNonEmpty(os.Getenv("STORE_BACKEND"), fc.Store.Backend, BackendMongoDB))

	cfg.MongoURI = firstNonEmpty(os.Getenv("MONGODB_URI"), fc.MongoDB.URI)
	if cfg.MongoURI == "" {
		var sec secretsFile
		if err := readYAML(filepath.Join(dir, "config", "secrets.yaml"), &sec); err != nil {
			return nil, fmt.Errorf("secrets file: %w", err)
		}
		cfg.MongoURI = strings.TrimSpace(sec.MongoURI)
	}
	cfg.MongoDatabase = firstNonEmpty(os.Getenv("MONGODB_DATABASE"), fc.MongoDB.Database, "test")
	cfg.MongoCollection = firstNonEmpty(fc.MongoDB.Collection, "weathers")
	cfg.MongoConnectTimeout = parseDuration(fc.MongoDB.ConnectTimeout, 10*time.Second)
	cfg.MongoHealthInterval = parseDurationOrZero(fc.MongoDB.HealthInterval, 30*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoreOptions converts the store settings for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.StoreBackend,
		Mongo: store.MongoConfig{
			URI:            c.MongoURI,
			Database:       c.MongoDatabase,
			Collection:     c.MongoCollection,
			ConnectTimeout: c.MongoConnectTimeout,
		},
	}
}

// readYAML decodes path into v. A missing file leaves v untouched.
func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read: %w", err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks the backend, requires a URI for mongodb and keeps the request
// timeout above the connect timeout so a cold connection can finish inside a request.
func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendMongoDB:
		if cfg.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI required for store backend %q (set env, mongodb.uri or config/secrets.yaml mongodb_uri)", BackendMongoDB)
		}
	case BackendInMemory:
	default:
		return fmt.Errorf("store.backend must be %s or %s, got %q", BackendMongoDB, BackendInMemory, cfg.StoreBackend)
	}
	if cfg.RequestTimeout <= cfg.MongoConnectTimeout {
		cfg.RequestTimeout = cfg.MongoConnectTimeout + time.Second
	}
	return nil
}
