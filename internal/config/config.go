package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Webhook  WebhookConfig  `koanf:"webhook"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
	// PublicURL is the externally reachable base URL used to build the
	// callback URLs handed to the workflow system.
	PublicURL string `koanf:"public_url"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MaxConnections int    `koanf:"max_connections"`
}

type AuthConfig struct {
	JWTSecret     string `koanf:"jwt_secret"`
	JWTExpiry     string `koanf:"jwt_expiry"`
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

type WebhookConfig struct {
	DispatchTimeout string `koanf:"dispatch_timeout"`
}

type SweepConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Interval string `koanf:"interval"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTExpiryDuration parses auth.jwt_expiry, falling back to 24h.
func (c *Config) JWTExpiryDuration() time.Duration {
	d, err := time.ParseDuration(c.Auth.JWTExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// DispatchTimeout parses webhook.dispatch_timeout, falling back to 30s.
func (c *Config) DispatchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Webhook.DispatchTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SweepInterval parses sweep.interval, falling back to 5m.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Sweep.Interval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// Load reads config from TOML file (if provided) then overlays env vars.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	// 2. Load TOML config file if provided
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. Load env vars: CF_SERVER_PORT -> server.port
	// Only set env vars that have non-empty values to avoid overriding TOML config.
	if err := k.Load(env.ProviderWithValue("CF_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "CF_")),
			"_", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
