// Package config loads the gateway configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "10s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BackendConfig holds the connection settings for one backend service.
type BackendConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
}

// SessionConfig holds session cookie and signing settings.
type SessionConfig struct {
	Secret     string   `yaml:"secret"`
	CookieName string   `yaml:"cookie_name"`
	TTL        Duration `yaml:"ttl"`
}

// RateLimitConfig holds per-client rate limiting settings.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// Config is the complete gateway configuration.
type Config struct {
	Listen    string                   `yaml:"listen"`
	LogLevel  string                   `yaml:"log_level"`
	Session   SessionConfig            `yaml:"session"`
	Backends  map[string]BackendConfig `yaml:"backends"`
	RateLimit RateLimitConfig          `yaml:"rate_limit"`
	CORS      struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Backend service names used as keys in Config.Backends.
const (
	ServiceCatalog  = "catalog"
	ServiceIdentity = "identity"
	ServiceOrder    = "order"
	ServicePayment  = "payment"
)

var backendNames = []string{ServiceCatalog, ServiceIdentity, ServiceOrder, ServicePayment}

// Load reads the configuration from path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads the configuration from path, falling back to the
// defaults (plus environment overrides) when the file is absent.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

// Default returns the default configuration with all four backends on their
// conventional local ports.
func Default() *Config {
	return &Config{
		Listen:   ":3000",
		LogLevel: "info",
		Session: SessionConfig{
			CookieName: "gateway_session",
			TTL:        Duration(24 * time.Hour),
		},
		Backends: map[string]BackendConfig{
			ServiceCatalog:  {BaseURL: "http://localhost:3001", Timeout: Duration(10 * time.Second)},
			ServiceIdentity: {BaseURL: "http://localhost:3002", Timeout: Duration(10 * time.Second)},
			ServiceOrder:    {BaseURL: "http://localhost:3003", Timeout: Duration(10 * time.Second)},
			ServicePayment:  {BaseURL: "http://localhost:3004", Timeout: Duration(15 * time.Second)},
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 50, Burst: 100},
	}
}

// Validate checks that every backend has a base URL and timeout and that a
// session secret is configured.
func (c *Config) Validate() error {
	if c.Session.Secret == "" {
		return fmt.Errorf("session secret is required (SESSION_SECRET)")
	}
	for _, name := range backendNames {
		b, ok := c.Backends[name]
		if !ok {
			return fmt.Errorf("backend %s: missing configuration", name)
		}
		if b.BaseURL == "" {
			return fmt.Errorf("backend %s: base_url is required", name)
		}
		if b.Timeout <= 0 {
			return fmt.Errorf("backend %s: timeout must be positive", name)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GATEWAY_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		c.Session.Secret = v
	}
	for name, env := range map[string]string{
		ServiceCatalog:  "CATALOG_URL",
		ServiceIdentity: "IDENTITY_URL",
		ServiceOrder:    "ORDER_URL",
		ServicePayment:  "PAYMENT_URL",
	} {
		if v := os.Getenv(env); v != "" {
			b := c.Backends[name]
			b.BaseURL = v
			c.Backends[name] = b
		}
	}
}
