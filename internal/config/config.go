// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file, and DERBY_* env vars.
// - External errors are wrapped via this package's sentinels.
package config

import "time"

// Store backend names.
const (
	StoreMemory = "memory"
	StoreMongo  = "mongo"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the score store backend: "memory" or "mongo".
	Store string `koanf:"store"`

	// MongoURI and MongoDatabase configure the mongo backend.
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`

	// StatsCacheTTL is the freshness window for cached daily aggregates.
	StatsCacheTTL time.Duration `koanf:"stats_cache_ttl"`

	// IngestQueueSize bounds the in-memory device ingest queue.
	IngestQueueSize int `koanf:"ingest_queue_size"`

	// DedupeSize bounds the ingest idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// LiveSendBuffer sizes each websocket client's outbound buffer.
	LiveSendBuffer int `koanf:"live_send_buffer"`

	// AllowedOrigins lists CORS origins for the browser frontend.
	// An empty list allows all origins.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		Store:           StoreMemory,
		MongoURI:        "mongodb://localhost:27017",
		MongoDatabase:   "bottlederby",
		StatsCacheTTL:   5 * time.Minute,
		IngestQueueSize: 4096,
		DedupeSize:      50_000,
		LiveSendBuffer:  16,
		AllowedOrigins:  nil,
	}
}
