package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesDurationsAndOverrides(t *testing.T) {
	path := writeConfig(t, `
listen: ":4000"
log_level: debug
session:
  secret: test-secret
  ttl: 12h
backends:
  catalog:
    base_url: http://catalog:3001
    timeout: 5s
  identity:
    base_url: http://identity:3002
    timeout: 5s
  order:
    base_url: http://order:3003
    timeout: 5s
  payment:
    base_url: http://payment:3004
    timeout: 30s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Listen != ":4000" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Session.TTL.Std() != 12*time.Hour {
		t.Fatalf("ttl = %v, want 12h", cfg.Session.TTL.Std())
	}
	if got := cfg.Backends[ServicePayment].Timeout.Std(); got != 30*time.Second {
		t.Fatalf("payment timeout = %v, want 30s", got)
	}
	// Unset fields keep their defaults.
	if cfg.Session.CookieName != "gateway_session" {
		t.Fatalf("cookie name = %q", cfg.Session.CookieName)
	}
	if cfg.RateLimit.RequestsPerSecond != 50 {
		t.Fatalf("rate = %d", cfg.RateLimit.RequestsPerSecond)
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: test-secret
backends:
  catalog:
    base_url: http://catalog:3001
    timeout: soon
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestEnvOverridesTakePrecedence(t *testing.T) {
	path := writeConfig(t, `
session:
  secret: file-secret
backends:
  catalog:
    base_url: http://catalog:3001
    timeout: 5s
`)

	t.Setenv("GATEWAY_LISTEN", ":9999")
	t.Setenv("SESSION_SECRET", "env-secret")
	t.Setenv("CATALOG_URL", "http://other-catalog:3001")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Session.Secret != "env-secret" {
		t.Fatalf("secret = %q", cfg.Session.Secret)
	}
	if cfg.Backends[ServiceCatalog].BaseURL != "http://other-catalog:3001" {
		t.Fatalf("catalog url = %q", cfg.Backends[ServiceCatalog].BaseURL)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults_with_secret", func(c *Config) { c.Session.Secret = "s" }, false},
		{"missing_secret", func(c *Config) {}, true},
		{"missing_backend", func(c *Config) {
			c.Session.Secret = "s"
			delete(c.Backends, ServiceOrder)
		}, true},
		{"empty_base_url", func(c *Config) {
			c.Session.Secret = "s"
			b := c.Backends[ServicePayment]
			b.BaseURL = ""
			c.Backends[ServicePayment] = b
		}, true},
		{"zero_timeout", func(c *Config) {
			c.Session.Secret = "s"
			b := c.Backends[ServiceCatalog]
			b.Timeout = 0
			c.Backends[ServiceCatalog] = b
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	t.Setenv("SESSION_SECRET", "env-secret")
	cfg := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.Listen != ":3000" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
	if cfg.Session.Secret != "env-secret" {
		t.Fatalf("secret = %q", cfg.Session.Secret)
	}
}
