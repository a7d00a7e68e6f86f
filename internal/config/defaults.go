package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host":       "0.0.0.0",
		"server.port":       8080,
		"server.public_url": "http://localhost:8080",

		"database.max_connections": 25,

		"auth.jwt_expiry":     "24h",
		"auth.admin_username": "admin",

		"webhook.dispatch_timeout": "30s",

		"sweep.enabled":  true,
		"sweep.interval": "5m",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
