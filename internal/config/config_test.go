package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Cache.MaxSize != 100 || cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("Unexpected cache defaults: %+v", cfg.Cache)
	}
	if cfg.Catalogue.Timeout != 3*time.Second || cfg.Catalogue.Limit != 5 {
		t.Errorf("Unexpected catalogue defaults: %+v", cfg.Catalogue)
	}
	if cfg.Library.SuccessAlpha != 0.1 {
		t.Errorf("SuccessAlpha = %f, want 0.1", cfg.Library.SuccessAlpha)
	}
	if cfg.NATS.Subject == "" {
		t.Error("Expected a default failure subject")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weaver.yaml")
	content := `
server:
  metrics_port: 8088
cache:
  max_size: 50
  ttl: 5m
redis:
  addr: localhost:6379
library:
  template_dir: /etc/weaver/templates
  success_alpha: 0.2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile() error = %v", err)
	}

	if cfg.Server.MetricsPort != 8088 {
		t.Errorf("MetricsPort = %d, want 8088", cfg.Server.MetricsPort)
	}
	if cfg.Cache.MaxSize != 50 || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %s", cfg.Redis.Addr)
	}
	if cfg.Library.SuccessAlpha != 0.2 {
		t.Errorf("SuccessAlpha = %f, want 0.2", cfg.Library.SuccessAlpha)
	}

	// Values the file does not set keep their defaults.
	if cfg.Catalogue.Limit != 5 {
		t.Errorf("Catalogue.Limit = %d, want default 5", cfg.Catalogue.Limit)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Missing file should not error, got %v", err)
	}
	if cfg.Server.MetricsPort != DefaultConfig().Server.MetricsPort {
		t.Error("Expected defaults for a missing file")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("{{{{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFromFile(path); err == nil {
		t.Fatal("Expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WEAVER_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("WEAVER_DATABASE_DSN", "postgres://weaver@db/weaver")
	t.Setenv("WEAVER_NATS_URL", "nats://broker:4222")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %s", cfg.Redis.Addr)
	}
	if cfg.Database.DSN != "postgres://weaver@db/weaver" {
		t.Errorf("Database.DSN = %s", cfg.Database.DSN)
	}
	if cfg.NATS.URL != "nats://broker:4222" {
		t.Errorf("NATS.URL = %s", cfg.NATS.URL)
	}
	if cfg.LLM.APIKey != "test-key" || !cfg.LLM.Enabled {
		t.Error("API key in env should enable the LLM")
	}
}
