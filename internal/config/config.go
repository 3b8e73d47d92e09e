package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"dronematch/internal/auth"
	"dronematch/internal/opt"
)

// Config is the service configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	RateLimit RateLimitConfig `json:"ratelimit"`
	Logging   LoggingConfig   `json:"logging"`
	Webhooks  WebhookConfig   `json:"webhooks"`
	Auth      auth.Config     `json:"auth"`
	Match     opt.MatchConfig `json:"match"`
}

type ServerConfig struct {
	Addr                string `json:"addr"`
	ReadHeaderTimeoutMs int    `json:"read_header_timeout_ms"`
	// MaxBodyBytes caps scenario uploads.
	MaxBodyBytes int64 `json:"max_body_bytes"`
}

// DatabaseConfig selects the Postgres store; an empty URL keeps matches in memory.
type DatabaseConfig struct {
	URL     string `json:"url"`
	Migrate bool   `json:"migrate"`
}

// RedisConfig selects the Redis monitor broker; an empty URL fans out in process.
type RedisConfig struct {
	URL string `json:"url"`
}

// RateLimitConfig throttles solve requests. RPS <= 0 disables throttling.
type RateLimitConfig struct {
	RPS   float64 `json:"rps"`
	Burst int     `json:"burst"`
}

// WebhookConfig posts a signed match.finished notification to URL after every
// match. An empty URL disables notifications.
type WebhookConfig struct {
	URL         string `json:"url"`
	Secret      string `json:"secret"`
	MaxAttempts int    `json:"max_attempts"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:    ServerConfig{Addr: ":8080", ReadHeaderTimeoutMs: 5000, MaxBodyBytes: 8 << 20},
		Database:  DatabaseConfig{Migrate: true},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 10},
		Logging:   LoggingConfig{Level: "info"},
		Webhooks:  WebhookConfig{MaxAttempts: 10},
		Match:     opt.DefaultMatchConfig(),
	}
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadHeaderTimeoutMs == 0 {
		c.Server.ReadHeaderTimeoutMs = 5000
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 8 << 20
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if c.Webhooks.MaxAttempts <= 0 {
		c.Webhooks.MaxAttempts = 10
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Match.SetDefaults()
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must be >= 0")
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Match.Validate(); err != nil {
		return fmt.Errorf("match: %w", err)
	}
	return nil
}

// Load reads path (yaml or json) on top of Default. An empty path only
// applies environment overrides: DM_ prefixed variables with "__" between
// nested keys, e.g. DM_SERVER__ADDR or DM_MATCH__SOLVER_TIMEOUT_MS.
func Load(path string) (*Config, error) {
	cfg := Default()
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("DM_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
