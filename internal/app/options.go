package service

import (
	"time"

	"github.com/okian/coachmatch/internal/domain/normalize"
	"github.com/okian/coachmatch/internal/domain/ranking"
	"github.com/okian/coachmatch/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithScoringTimeout bounds the whole scoring stage of one request.
func WithScoringTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.scoringTimeout = d
		}
	}
}

// WithCacheTTL sets the lifetime of fully scored results.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithFallbackTTL sets the lifetime of fallback and empty results.
func WithFallbackTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.fallbackTTL = d
		}
	}
}

// WithRequireVerified controls whether unverified coaches are dropped.
func WithRequireVerified(v bool) Option {
	return func(s *Service) {
		s.requireVerified = v
	}
}

// WithNormalizer sets the feature normalizer, and through it the embedding provider.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Service) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithRanker sets the ranker.
func WithRanker(r *ranking.Ranker) Option {
	return func(s *Service) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithClock overrides the time source used for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how result ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
