package config

import (
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
//  2. file (YAML) if DERBY_CONFIG is set
//  3. env (prefix DERBY_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("DERBY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Env keys like DERBY_MONGO_URI map to mongo_uri; underscores are
	// preserved to match the koanf tags on the struct.
	envProvider := env.Provider("DERBY_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "derby_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate performs basic sanity checks on a loaded config.
func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch cfg.Store {
	case StoreMemory, StoreMongo:
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, cfg.Store)
	}
	if cfg.Store == StoreMongo && cfg.MongoURI == "" {
		return fmt.Errorf("%w: mongo_uri must not be empty for the mongo store", ErrInvalidConfig)
	}
	if cfg.StatsCacheTTL <= 0 {
		return fmt.Errorf("%w: stats_cache_ttl must be positive", ErrInvalidConfig)
	}
	if cfg.IngestQueueSize <= 0 {
		return fmt.Errorf("%w: ingest_queue_size must be positive", ErrInvalidConfig)
	}
	return nil
}
