// Package config holds the weaver configuration: YAML file based, with
// environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Catalogue CatalogueConfig `yaml:"catalogue"`
	Engine    EngineConfig    `yaml:"engine"`
	LLM       LLMConfig       `yaml:"llm"`
	Library   LibraryConfig   `yaml:"library"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the serve mode HTTP endpoint.
type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

// CacheConfig configures the Tier-1 template cache.
type CacheConfig struct {
	MaxSize       int           `yaml:"max_size"`
	TTL           time.Duration `yaml:"ttl"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// RedisConfig configures the Tier-2 shared store. An empty address
// disables Tier 2.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig configures statistics/pattern persistence. An empty DSN
// disables persistence.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig configures the deployment-failure event bridge. An empty URL
// disables the bridge.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// CatalogueConfig configures the community catalogue. An empty base URL
// disables the community source.
type CatalogueConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Limit   int           `yaml:"limit"`
}

// EngineConfig configures the workflow-engine client.
type EngineConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// LLMConfig configures the generative-repair service.
type LLMConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	Enabled   bool   `yaml:"enabled"`
}

// LibraryConfig configures the curated template library.
type LibraryConfig struct {
	TemplateDir  string  `yaml:"template_dir"`
	SuccessAlpha float64 `yaml:"success_alpha"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns working defaults for a single-node deployment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{MetricsPort: 9090},
		Cache: CacheConfig{
			MaxSize:       100,
			TTL:           15 * time.Minute,
			CleanupPeriod: 5 * time.Minute,
		},
		Catalogue: CatalogueConfig{
			Timeout: 3 * time.Second,
			Limit:   5,
		},
		Engine: EngineConfig{Timeout: 15 * time.Second},
		LLM: LLMConfig{
			Model:     "claude-haiku-4-5",
			MaxTokens: 4096,
		},
		Library: LibraryConfig{SuccessAlpha: 0.1},
		NATS:    NATSConfig{Subject: "weaver.deploy.failed"},
		Telemetry: TelemetryConfig{
			Endpoint: "localhost:4317",
		},
	}
}

// LoadConfigFromFile reads YAML config and applies environment overrides.
// A missing file yields defaults plus overrides.
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides deployment settings from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("WEAVER_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("WEAVER_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("WEAVER_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("WEAVER_NATS_URL"); v != "" {
		c.NATS.URL = v
	}
	if v := os.Getenv("WEAVER_CATALOGUE_URL"); v != "" {
		c.Catalogue.BaseURL = v
	}
	if v := os.Getenv("WEAVER_ENGINE_URL"); v != "" {
		c.Engine.BaseURL = v
	}
	if v := os.Getenv("WEAVER_ENGINE_API_KEY"); v != "" {
		c.Engine.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.APIKey = v
		c.LLM.Enabled = true
	}
	if v := os.Getenv("WEAVER_OTEL_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("WEAVER_TEMPLATE_DIR"); v != "" {
		c.Library.TemplateDir = v
	}
}
