package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/tutoring
redis:
  url: localhost:6379
`)
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Queue.MaxConcurrent != 5 {
		t.Fatalf("expected default max_concurrent=5, got %d", cfg.Queue.MaxConcurrent)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Fatalf("expected default max_retries=3, got %d", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.TickInterval != time.Second {
		t.Fatalf("expected default tick of 1s, got %s", cfg.Queue.TickInterval)
	}
	if cfg.Queue.RetryDelay != 0 {
		t.Fatalf("retry delay must default to zero, got %s", cfg.Queue.RetryDelay)
	}
	if cfg.Queue.JobTimeout != 60*time.Second {
		t.Fatalf("expected default job timeout of 60s, got %s", cfg.Queue.JobTimeout)
	}
	if cfg.Hub.PingInterval != 30*time.Second {
		t.Fatalf("expected default ping interval of 30s, got %s", cfg.Hub.PingInterval)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if !cfg.Runtime.Dev {
		t.Fatal("dev flag not carried into runtime config")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/tutoring
redis:
  url: localhost:6379
queue:
  max_concurrent: 2
  max_retries: 5
  retry_delay: 2s
auth:
  hmac_secret: sekrit
`)
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Queue.MaxConcurrent != 2 || cfg.Queue.MaxRetries != 5 {
		t.Fatalf("overrides not applied: %+v", cfg.Queue)
	}
	if cfg.Queue.RetryDelay != 2*time.Second {
		t.Fatalf("expected retry_delay=2s, got %s", cfg.Queue.RetryDelay)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		dev     bool
	}{
		{"missing database", "redis:\n  url: localhost:6379\nauth:\n  hmac_secret: s\n", false},
		{"missing redis", "database:\n  url: postgres://x\nauth:\n  hmac_secret: s\n", false},
		{"missing secret outside dev", "database:\n  url: postgres://x\nredis:\n  url: localhost:6379\n", false},
	}
	for _, tc := range cases {
		path := writeConfig(t, tc.content)
		if _, err := LoadConfig(path, tc.dev); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
