package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all conduit configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Listen       string             `yaml:"listen"`
	DBPath       string             `yaml:"db_path"`
	Log          LogConfig          `yaml:"log"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Providers    []ProviderConfig   `yaml:"providers"`
	Router       RouterConfig       `yaml:"router"`
	Tracker      TrackerConfig      `yaml:"tracker"`
}

// OrchestratorConfig controls caching, retries and timeouts.
type OrchestratorConfig struct {
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	MaxRetries     int           `yaml:"max_retries"`
	BaseRetryDelay time.Duration `yaml:"base_retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// TrackerConfig controls the SQLite call log.
type TrackerConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RouterConfig defines provider fallback chains per logical operation.
type RouterConfig struct {
	Routes []RouteConfig `yaml:"routes"`
}

// RouteConfig maps an operation name to an ordered list of providers.
type RouteConfig struct {
	Operation string   `yaml:"operation"`
	Providers []string `yaml:"providers"`
}

// ProviderConfig defines an upstream provider.
// Type is "openai" (default), "anthropic" or "rest".
type ProviderConfig struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	// Auth is "bearer", "header", "query" or "none". Empty selects the
	// provider type's native scheme.
	Auth string `yaml:"auth"`
	// AuthParam names the header or query parameter for "header" and
	// "query" auth.
	AuthParam string            `yaml:"auth_param"`
	Path      string            `yaml:"path"`
	Method    string            `yaml:"method"`
	Model     string            `yaml:"model"`
	Headers   map[string]string `yaml:"headers"`
	RateLimit *RateLimitConfig  `yaml:"rate_limit"`
}

// RateLimitConfig is a sliding-window admission limit.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "conduit.db",
		Log: LogConfig{
			Level: "info",
		},
		Orchestrator: OrchestratorConfig{
			CacheTTL:       10 * time.Minute,
			SweepInterval:  time.Minute,
			MaxRetries:     3,
			BaseRetryDelay: 500 * time.Millisecond,
			RequestTimeout: 30 * time.Second,
		},
	}
}

// Load reads a YAML config file, expands environment variables and validates
// the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Provider returns the provider with the given name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// MaxRetriesLimit is the largest accepted orchestrator.max_retries.
const MaxRetriesLimit = 30

// Validate rejects configurations the orchestrator cannot run with.
func (c *Config) Validate() error {
	var errs []error

	o := c.Orchestrator
	if o.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.cache_ttl must be positive, got %v", o.CacheTTL))
	}
	if o.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.sweep_interval must be positive, got %v", o.SweepInterval))
	}
	if o.MaxRetries < 0 || o.MaxRetries > MaxRetriesLimit {
		errs = append(errs, fmt.Errorf("orchestrator.max_retries must be between 0 and %d, got %d", MaxRetriesLimit, o.MaxRetries))
	}
	if o.BaseRetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.base_retry_delay must be positive, got %v", o.BaseRetryDelay))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.request_timeout must be positive, got %v", o.RequestTimeout))
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("provider %q: duplicate name", p.Name))
		}
		seen[p.Name] = true
		if p.URL == "" {
			errs = append(errs, fmt.Errorf("provider %q: url is required", p.Name))
		}
		switch p.Type {
		case "", "openai", "anthropic", "rest":
		default:
			errs = append(errs, fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type))
		}
		switch p.Auth {
		case "", "bearer", "none":
		case "header", "query":
			if p.AuthParam == "" {
				errs = append(errs, fmt.Errorf("provider %q: auth %q requires auth_param", p.Name, p.Auth))
			}
		default:
			errs = append(errs, fmt.Errorf("provider %q: unknown auth scheme %q", p.Name, p.Auth))
		}
		if rl := p.RateLimit; rl != nil {
			if rl.Requests <= 0 {
				errs = append(errs, fmt.Errorf("provider %q: rate_limit.requests must be positive, got %d", p.Name, rl.Requests))
			}
			if rl.Window <= 0 {
				errs = append(errs, fmt.Errorf("provider %q: rate_limit.window must be positive, got %v", p.Name, rl.Window))
			}
		}
	}

	for _, r := range c.Router.Routes {
		if r.Operation == "" {
			errs = append(errs, errors.New("router: route operation is required"))
			continue
		}
		if len(r.Providers) == 0 {
			errs = append(errs, fmt.Errorf("route %q: no providers", r.Operation))
		}
		for _, name := range r.Providers {
			if !seen[name] {
				errs = append(errs, fmt.Errorf("route %q: unknown provider %q", r.Operation, name))
			}
		}
	}

	return errors.Join(errs...)
}
