// Package config loads runtime settings from a YAML file with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/restbridge/internal/cache"
	"github.com/roach88/restbridge/internal/postgrest"
)

// Transports.
const (
	TransportREST     = "rest"
	TransportPostgres = "postgres"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESTBRIDGE_"

// Config holds all runtime settings.
type Config struct {
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"apiKey"`
	Schema      string `yaml:"schema"`
	Transport   string `yaml:"transport"`
	DatabaseURL string `yaml:"databaseURL"`

	RateLimit float64       `yaml:"rateLimit"`
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`

	RegistryDir string `yaml:"registryDir"`
	JournalPath string `yaml:"journalPath"`

	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// CacheConfig sizes the escape and general caches.
type CacheConfig struct {
	EscapeMax  int           `yaml:"escapeMax"`
	EscapeTTL  time.Duration `yaml:"escapeTTL"`
	GeneralMax int           `yaml:"generalMax"`
	GeneralTTL time.Duration `yaml:"generalTTL"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Schema:    "public",
		Transport: TransportREST,
		RateLimit: 10,
		Burst:     10,
		Timeout:   30 * time.Second,
		Cache: CacheConfig{
			EscapeMax:  postgrest.EscapeCacheMax,
			EscapeTTL:  postgrest.EscapeCacheTTL,
			GeneralMax: cache.DefaultMax,
			GeneralTTL: cache.DefaultTTL,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment overrides from getenv. A nil getenv means os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	str("ENDPOINT", &c.Endpoint)
	str("API_KEY", &c.APIKey)
	str("SCHEMA", &c.Schema)
	str("TRANSPORT", &c.Transport)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REGISTRY_DIR", &c.RegistryDir)
	str("JOURNAL_PATH", &c.JournalPath)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v := getenv(EnvPrefix + "RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sRATE_LIMIT: %w", EnvPrefix, err)
		}
		c.RateLimit = f
	}
	if v := getenv(EnvPrefix + "BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBURST: %w", EnvPrefix, err)
		}
		c.Burst = n
	}
	if v := getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err)
		}
		c.Timeout = d
	}
	return nil
}

// Validate checks enumerated values and transport requirements. An empty
// endpoint is allowed; commands that need one check for it.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case TransportREST:
	case TransportPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("transport postgres requires databaseURL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.RateLimit < 0 {
		errs = append(errs, errors.New("rateLimit must not be negative"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "***"
	}
	if c.DatabaseURL != "" {
		c.DatabaseURL = "***"
	}
	return c
}
