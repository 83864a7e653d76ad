package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"billpay-wizard/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type WebConfig struct {
	Port       int           `yaml:"port"`
	APISecret  string        `yaml:"api_secret"`  // HMAC secret for host-UI tokens
	TokenTTL   time.Duration `yaml:"token_ttl"`   // bearer token lifetime
	RateLimit  int           `yaml:"rate_limit"`  // session creations per subject per window
	RateWindow time.Duration `yaml:"rate_window"` //
}

type BackendConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Currency string        `yaml:"currency"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // session lifetime
}

type DatabaseConfig struct {
	URL string `yaml:"url"` // optional; empty disables receipt history
}

// ServiceRulesConfig binds per-service wizard rules to a catalog slug.
type ServiceRulesConfig struct {
	Slug              string   `yaml:"slug"`
	IdentifierPattern string   `yaml:"identifier_pattern"`
	MinAmount         int64    `yaml:"min_amount"`
	PINLength         int      `yaml:"pin_length"`
	Channels          []string `yaml:"channels"`
}

type Config struct {
	Log      LogConfig            `yaml:"log"`
	Web      WebConfig            `yaml:"web"`
	Backend  BackendConfig        `yaml:"backend"`
	Redis    RedisConfig          `yaml:"redis"`
	Database DatabaseConfig       `yaml:"database"`
	Services []ServiceRulesConfig `yaml:"services"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}
	if cfg.Web.TokenTTL <= 0 {
		cfg.Web.TokenTTL = 30 * time.Minute
	}
	if cfg.Web.RateLimit <= 0 {
		cfg.Web.RateLimit = 10
	}
	if cfg.Web.RateWindow <= 0 {
		cfg.Web.RateWindow = time.Minute
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 15 * time.Second
	}
	if cfg.Backend.Currency == "" {
		cfg.Backend.Currency = "XOF"
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Backend.BaseURL == "" {
		return nil, errors.New("backend.base_url is required")
	}
	if cfg.Web.APISecret == "" {
		return nil, errors.New("web.api_secret is required")
	}
	for i, s := range cfg.Services {
		if s.Slug == "" {
			return nil, fmt.Errorf("services[%d].slug is required", i)
		}
		if err := ruleFromConfig(s).Validate(); err != nil {
			return nil, fmt.Errorf("services[%d] (%s): invalid rules", i, s.Slug)
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

// ServiceRules converts the configured per-service entries into domain rules
// keyed by slug. Unset fields fall back to the defaults.
func (c *Config) ServiceRules() map[string]model.ServiceRules {
	out := make(map[string]model.ServiceRules, len(c.Services))
	for _, s := range c.Services {
		out[s.Slug] = ruleFromConfig(s)
	}
	return out
}

func ruleFromConfig(s ServiceRulesConfig) model.ServiceRules {
	r := model.DefaultServiceRules()
	if s.IdentifierPattern != "" {
		r.IdentifierPattern = s.IdentifierPattern
	}
	if s.MinAmount > 0 {
		r.MinAmount = s.MinAmount
	}
	if s.PINLength > 0 {
		r.PINLength = s.PINLength
	}
	if len(s.Channels) > 0 {
		r.Channels = append(r.Channels[:0], s.Channels...)
	}
	return r
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 15 * time.Minute
	}
	return d
}
