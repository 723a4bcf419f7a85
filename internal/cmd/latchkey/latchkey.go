// Package latchkey parses command configuration for the auth service binary.
package latchkey

import (
	"context"
	"flag"
	"strings"

	"github.com/latchkey-auth/latchkey/internal/app"
)

// Config holds command configuration.
type Config struct {
	Addr        string
	StoragePath string
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		Addr:        envOrDefault(lookup, []string{"LATCHKEY_HTTP_ADDR"}, "localhost:8085"),
		StoragePath: envOrDefault(lookup, []string{"LATCHKEY_STORAGE_PATH"}, "latchkey.db"),
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP server address")
	fs.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "The SQLite storage path")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the auth server.
func Run(ctx context.Context, cfg Config) error {
	return app.Run(ctx, app.Options{
		Addr:        cfg.Addr,
		StoragePath: cfg.StoragePath,
	})
}

func envOrDefault(lookup EnvLookup, keys []string, fallback string) string {
	for _, key := range keys {
		if lookup == nil {
			break
		}
		value, ok := lookup(key)
		if ok {
			trimmed := strings.TrimSpace(value)
			if trimmed != "" {
				return trimmed
			}
		}
	}
	return fallback
}
