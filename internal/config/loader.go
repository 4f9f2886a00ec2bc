package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PROFBOARD_CONFIG is set
//  3. env (prefix PROFBOARD_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("PROFBOARD_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadFile, err)
		}
	}

	// Environment variables: PROFBOARD_ADDR, PROFBOARD_DATABASE_URL, ...
	// Underscores are preserved so keys match the koanf struct tags.
	envProvider := env.Provider("PROFBOARD_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "profboard_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadEnv, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnmarshal, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalid)
	case c.SnapshotRefreshSec <= 0:
		return fmt.Errorf("%w: snapshot_refresh_sec must be positive", ErrInvalid)
	case c.MaxSearchResults <= 0:
		return fmt.Errorf("%w: max_search_results must be positive", ErrInvalid)
	case c.DBMinConns < 0 || c.DBMaxConns < c.DBMinConns:
		return fmt.Errorf("%w: db connection bounds out of order", ErrInvalid)
	}
	return nil
}
