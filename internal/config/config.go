// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and MATCH_ env vars on top of the defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Embedding providers.
const (
	EmbedderHashing = "hashing"
	EmbedderHTTP    = "http"
	EmbedderNone    = "none"
)

// Event drivers. EventsGoChannel is an in-process bus for embedding and
// tests; matchd refuses it.
const (
	EventsNone      = "none"
	EventsGoChannel = "gochannel"
	EventsNATS      = "nats"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ScoringTimeoutMS bounds the whole scoring stage of one request.
	ScoringTimeoutMS int `koanf:"scoring_timeout_ms"`

	// CacheTTLSeconds is the lifetime of a fully scored result.
	CacheTTLSeconds int `koanf:"cache_ttl_seconds"`

	// FallbackTTLSeconds is the lifetime of a fallback result. Must be shorter than CacheTTLSeconds.
	FallbackTTLSeconds int `koanf:"fallback_ttl_seconds"`

	// RequireVerified drops unverified coaches from the candidate pool.
	RequireVerified bool `koanf:"require_verified"`

	StoreDriver string `koanf:"store_driver"`
	SQLitePath  string `koanf:"sqlite_path"`

	// SeedPath points at a JSON fixture of clients and coaches loaded at startup.
	SeedPath string `koanf:"seed_path"`

	Embedder            string  `koanf:"embedder"`
	EmbeddingURL        string  `koanf:"embedding_url"`
	EmbeddingAPIKey     string  `koanf:"embedding_api_key"`
	EmbeddingModel      string  `koanf:"embedding_model"`
	EmbeddingDimensions int     `koanf:"embedding_dimensions"`
	EmbeddingRPS        float64 `koanf:"embedding_rps"`
	EmbeddingBurst      int     `koanf:"embedding_burst"`

	// Circuit breaker around the embedding provider.
	BreakerMinRequests  uint32  `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64 `koanf:"breaker_failure_ratio"`
	BreakerOpenSeconds  int     `koanf:"breaker_open_seconds"`

	EventsDriver       string `koanf:"events_driver"`
	NATSURL            string `koanf:"nats_url"`
	ClientUpdatedTopic string `koanf:"client_updated_topic"`
	CoachUpdatedTopic  string `koanf:"coach_updated_topic"`

	// EventDedupeWindow is how many recent event ids are remembered to skip redeliveries.
	EventDedupeWindow int `koanf:"event_dedupe_window"`
}

// New creates a Config populated with defaults. Context is accepted first to
// satisfy the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		ScoringTimeoutMS:    10_000,
		CacheTTLSeconds:     86_400,
		FallbackTTLSeconds:  900,
		RequireVerified:     true,
		StoreDriver:         StoreMemory,
		SQLitePath:          "coachmatch.db",
		Embedder:            EmbedderHashing,
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 256,
		EmbeddingRPS:        20,
		EmbeddingBurst:      5,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
		BreakerOpenSeconds:  30,
		EventsDriver:        EventsNone,
		NATSURL:             "nats://127.0.0.1:4222",
		ClientUpdatedTopic:  "profile.client.updated",
		CoachUpdatedTopic:   "profile.coach.updated",
		EventDedupeWindow:   4096,
	}
}

// ScoringTimeout returns the scoring stage deadline.
func (c *Config) ScoringTimeout() time.Duration {
	return time.Duration(c.ScoringTimeoutMS) * time.Millisecond
}

// CacheTTL returns the lifetime of a fully scored result.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// FallbackTTL returns the lifetime of a fallback result.
func (c *Config) FallbackTTL() time.Duration {
	return time.Duration(c.FallbackTTLSeconds) * time.Second
}

// BreakerOpenTimeout returns how long the embedding breaker stays open.
func (c *Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.BreakerOpenSeconds) * time.Second
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.ScoringTimeoutMS <= 0:
		return fmt.Errorf("%w: scoring_timeout_ms must be positive", ErrInvalidConfig)
	case c.CacheTTLSeconds <= 0:
		return fmt.Errorf("%w: cache_ttl_seconds must be positive", ErrInvalidConfig)
	case c.FallbackTTLSeconds <= 0:
		return fmt.Errorf("%w: fallback_ttl_seconds must be positive", ErrInvalidConfig)
	case c.FallbackTTLSeconds >= c.CacheTTLSeconds:
		return fmt.Errorf("%w: fallback_ttl_seconds must be shorter than cache_ttl_seconds", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: sqlite_path is required for the sqlite store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.Embedder {
	case EmbedderNone:
	case EmbedderHashing:
		if c.EmbeddingDimensions <= 0 {
			return fmt.Errorf("%w: embedding_dimensions must be positive", ErrInvalidConfig)
		}
	case EmbedderHTTP:
		if c.EmbeddingURL == "" {
			return fmt.Errorf("%w: embedding_url is required for the http embedder", ErrInvalidConfig)
		}
		if c.EmbeddingRPS <= 0 || c.EmbeddingBurst <= 0 {
			return fmt.Errorf("%w: embedding_rps and embedding_burst must be positive", ErrInvalidConfig)
		}
		if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
			return fmt.Errorf("%w: breaker_failure_ratio must be in (0,1]", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedder %q", ErrInvalidConfig, c.Embedder)
	}

	if c.EventDedupeWindow <= 0 {
		return fmt.Errorf("%w: event_dedupe_window must be positive", ErrInvalidConfig)
	}
	switch c.EventsDriver {
	case EventsNone, EventsGoChannel:
	case EventsNATS:
		if c.NATSURL == "" {
			return fmt.Errorf("%w: nats_url is required for the nats driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown events_driver %q", ErrInvalidConfig, c.EventsDriver)
	}
	return nil
}
