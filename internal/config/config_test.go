package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q", cfg.Server.Host)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("database.max_connections = %d, want 25", cfg.Database.MaxConnections)
	}
	if !cfg.Sweep.Enabled {
		t.Error("sweep.enabled should default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
port = 9090

[database]
url = "postgres://localhost/contentflow"

[sweep]
enabled = false
interval = "90s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/contentflow" {
		t.Errorf("database.url = %q", cfg.Database.URL)
	}
	if cfg.Sweep.Enabled {
		t.Error("sweep.enabled should be overridden to false")
	}
	if got := cfg.SweepInterval(); got != 90*time.Second {
		t.Errorf("sweep interval = %v, want 90s", got)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server.host = %q, want default", cfg.Server.Host)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CF_SERVER_PORT", "3000")
	t.Setenv("CF_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("server.port = %d, want env override 3000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
}

func TestEmptyEnvDoesNotOverride(t *testing.T) {
	t.Setenv("CF_LOGGING_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %q, empty env var must not override", cfg.Logging.Level)
	}
}

func TestDurationFallbacks(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		get  func(*Config) time.Duration
		want time.Duration
	}{
		{"jwt expiry valid", Config{Auth: AuthConfig{JWTExpiry: "1h"}}, (*Config).JWTExpiryDuration, time.Hour},
		{"jwt expiry garbage", Config{Auth: AuthConfig{JWTExpiry: "soon"}}, (*Config).JWTExpiryDuration, 24 * time.Hour},
		{"jwt expiry negative", Config{Auth: AuthConfig{JWTExpiry: "-5m"}}, (*Config).JWTExpiryDuration, 24 * time.Hour},
		{"dispatch timeout valid", Config{Webhook: WebhookConfig{DispatchTimeout: "10s"}}, (*Config).DispatchTimeout, 10 * time.Second},
		{"dispatch timeout empty", Config{}, (*Config).DispatchTimeout, 30 * time.Second},
		{"sweep interval valid", Config{Sweep: SweepConfig{Interval: "2m"}}, (*Config).SweepInterval, 2 * time.Minute},
		{"sweep interval empty", Config{}, (*Config).SweepInterval, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.get(&tt.cfg); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
