// Package config loads the rule builder configuration from an optional TOML
// file and RULEBUILDER_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/liamcoop/rulebuilder/internal/logger"
)

// EnvPrefix prefixes every environment override. A single underscore
// separates sections and a double underscore is a literal underscore, so
// RULEBUILDER_STORE_POSTGRES__URL sets store.postgres_url.
const EnvPrefix = "RULEBUILDER_"

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNATS     = "nats"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Catalog CatalogConfig `koanf:"catalog"`
	Rules   RulesConfig   `koanf:"rules"`
	Log     LogConfig     `koanf:"log"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// Requests slower than this are counted and logged.
	SlowRequest time.Duration `koanf:"slow_request"`
}

// StoreConfig selects where rule definitions are kept.
type StoreConfig struct {
	Backend     string `koanf:"backend"`
	PostgresURL string `koanf:"postgres_url"`
	NATSURL     string `koanf:"nats_url"`
	NATSBucket  string `koanf:"nats_bucket"`
}

// CatalogConfig points at the task catalog. File selects a static YAML
// catalog instead of the HTTP API.
type CatalogConfig struct {
	BaseURL  string        `koanf:"base_url"`
	Token    string        `koanf:"token"`
	Timeout  time.Duration `koanf:"timeout"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
	File     string        `koanf:"file"`
}

type RulesConfig struct {
	PlaceholderPrefix string `koanf:"placeholder_prefix"`
	ProvenanceTag     string `koanf:"provenance_tag"`
}

type LogConfig struct {
	Level       string `koanf:"level"`
	Format      string `koanf:"format"`
	ServiceName string `koanf:"service_name"`
	SampleRate  int    `koanf:"sample_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
			SlowRequest:     2 * time.Second,
		},
		Store: StoreConfig{
			Backend:    BackendMemory,
			NATSURL:    "nats://localhost:4222",
			NATSBucket: "RULE_DEFINITIONS",
		},
		Catalog: CatalogConfig{
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		Rules: RulesConfig{
			PlaceholderPrefix: "<<",
			ProvenanceTag:     "MCP",
		},
		Log: LogConfig{
			Level:       "INFO",
			Format:      logger.FormatJSON,
			ServiceName: "rulebuilder",
			SampleRate:  1,
		},
	}
}

// Load reads configPath (optional; a missing file is not an error) and then
// the environment, and validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to access config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
	s = strings.ReplaceAll(s, "_", ".")
	return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("store.postgres_url is required for the postgres backend")
		}
	case BackendNATS:
		if c.Store.NATSURL == "" {
			return fmt.Errorf("store.nats_url is required for the nats backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, postgres, nats; got %q", c.Store.Backend)
	}

	if c.Catalog.File == "" {
		if c.Catalog.BaseURL == "" {
			return fmt.Errorf("catalog.base_url or catalog.file is required")
		}
		if _, err := url.ParseRequestURI(c.Catalog.BaseURL); err != nil {
			return fmt.Errorf("catalog.base_url is not a valid URL: %w", err)
		}
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive")
	}
	if c.Catalog.CacheTTL < 0 {
		return fmt.Errorf("catalog.cache_ttl must not be negative")
	}

	if strings.TrimSpace(c.Rules.PlaceholderPrefix) == "" {
		return fmt.Errorf("rules.placeholder_prefix must not be blank")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}
