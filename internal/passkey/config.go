// Package passkey implements the WebAuthn registration and authentication
// ceremonies.
package passkey

import (
	"github.com/caarlos0/env/v11"
)

// DefaultAppName is the relying party display name when none is configured.
const DefaultAppName = "Latchkey"

// Config controls WebAuthn relying party settings.
type Config struct {
	RPDisplayName string `env:"LATCHKEY_WEBAUTHN_RP_DISPLAY_NAME"`
	RPID          string `env:"LATCHKEY_WEBAUTHN_RP_ID"     envDefault:"localhost"`
	RPOrigin      string `env:"LATCHKEY_WEBAUTHN_RP_ORIGIN"`
}

// LoadConfigFromEnv returns passkey configuration with defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{
			RPDisplayName: DefaultAppName,
			RPID:          "localhost",
			RPOrigin:      "http://localhost:8085",
		}
	}
	if cfg.RPDisplayName == "" {
		cfg.RPDisplayName = DefaultAppName
	}
	if cfg.RPOrigin == "" {
		cfg.RPOrigin = "http://localhost:8085"
	}
	return cfg
}
