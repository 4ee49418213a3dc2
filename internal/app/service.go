// Package service implements the match orchestrator: cache lookup, scoring
// under a deadline, ranking, fallback and cache write-back.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/coachmatch/internal/adapters/cache"
	"github.com/okian/coachmatch/internal/adapters/repository"
	"github.com/okian/coachmatch/internal/domain/inflight"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/internal/domain/normalize"
	"github.com/okian/coachmatch/internal/domain/ranking"
	"github.com/okian/coachmatch/internal/domain/scoring"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// Defaults used when no option overrides them.
const (
	DefaultScoringTimeout = 10 * time.Second
	DefaultCacheTTL       = 24 * time.Hour
	DefaultFallbackTTL    = 15 * time.Minute
)

// Fallback reasons recorded in metrics.
const (
	reasonTimeout  = "timeout"
	reasonProvider = "provider_error"
)

// ProfileStore is the read side of the profile store.
type ProfileStore interface {
	GetClient(ctx context.Context, clientID string) (*model.ClientFeatureSet, error)
	ListActiveCoaches(ctx context.Context) ([]model.CoachFeatureSet, error)
}

// ResultCache stores one ranked result per client.
type ResultCache interface {
	Get(ctx context.Context, clientID, fingerprint string) (*model.RankedMatchResult, bool, error)
	Put(ctx context.Context, clientID, fingerprint string, result *model.RankedMatchResult, ttl time.Duration) error
	Invalidate(ctx context.Context, clientID string) error
	Info(ctx context.Context, clientID string) (cache.Info, error)
}

// MatchOptions tunes a single request.
type MatchOptions struct {
	// Limit trims the returned matches; 0 returns all (at most model.MaxMatches).
	Limit int
	// UseCache false skips the cache read. The fresh result is still written back.
	UseCache bool
}

// Outcome is a match result plus how it was produced.
type Outcome struct {
	Result *model.RankedMatchResult
	Cached bool
}

// Service orchestrates match requests.
type Service struct {
	store      ProfileStore
	cache      ResultCache
	normalizer *normalize.Normalizer
	scorer     *scoring.Scorer
	ranker     *ranking.Ranker
	group      *inflight.Group[*model.RankedMatchResult]

	scoringTimeout  time.Duration
	cacheTTL        time.Duration
	fallbackTTL     time.Duration
	requireVerified bool

	now   func() time.Time
	newID func() string

	logger logger.Logger
}

// New constructs a Service reading profiles from store and caching in c.
func New(store ProfileStore, c ResultCache, opts ...Option) *Service {
	s := &Service{
		store:           store,
		cache:           c,
		scorer:          scoring.New(),
		scoringTimeout:  DefaultScoringTimeout,
		cacheTTL:        DefaultCacheTTL,
		fallbackTTL:     DefaultFallbackTTL,
		requireVerified: true,
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("matcher")
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}
	if s.ranker == nil {
		s.ranker = ranking.New()
	}
	s.group = inflight.New[*model.RankedMatchResult](inflight.WithRunningHook(metrics.UpdateInflight))
	return s
}

// RequestMatch returns the ranked coaches for clientID.
//
// Only data errors are returned: ErrClientNotFound, ErrInvalidProfile and
// ErrStoreUnavailable, plus ctx.Err() when the caller gives up. Scoring
// failures degrade to a fallback result; cache failures are treated as misses.
func (s *Service) RequestMatch(ctx context.Context, clientID string, opts MatchOptions) (*Outcome, error) {
	start := time.Now()
	defer func() { metrics.RecordMatchLatency(metrics.Elapsed(start)) }()

	client, err := s.store.GetClient(ctx, clientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordMatchRequest(metrics.OutcomeNotFound)
		return nil, fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	case err != nil:
		metrics.RecordMatchRequest(metrics.OutcomeError)
		metrics.RecordErrorByComponent("matcher", "store_error")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := client.Validate(); err != nil {
		metrics.RecordMatchRequest(metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	fp, err := cache.Fingerprint(client)
	if err != nil {
		metrics.RecordMatchRequest(metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}

	if opts.UseCache {
		if hit := s.lookup(ctx, clientID, fp); hit != nil {
			metrics.RecordMatchRequest(metrics.OutcomeCacheHit)
			return &Outcome{Result: hit.Limit(opts.Limit), Cached: true}, nil
		}
	}

	result, joined, err := s.group.Do(ctx, clientID+":"+fp, func(ctx context.Context) (*model.RankedMatchResult, error) {
		return s.compute(ctx, client, fp)
	})
	if joined {
		metrics.RecordCollapsedRequest()
	}
	if err != nil {
		metrics.RecordMatchRequest(metrics.OutcomeError)
		return nil, err
	}

	if result.Fallback {
		metrics.RecordMatchRequest(metrics.OutcomeFallback)
	} else {
		metrics.RecordMatchRequest(metrics.OutcomeScored)
	}
	return &Outcome{Result: result.Limit(opts.Limit)}, nil
}

func (s *Service) lookup(ctx context.Context, clientID, fp string) *model.RankedMatchResult {
	hit, ok, err := s.cache.Get(ctx, clientID, fp)
	if err != nil {
		metrics.RecordCacheError("get")
		s.logger.Warn(ctx, "cache read failed, treating as miss",
			logger.String("client_id", clientID),
			logger.Error(err),
		)
		return nil
	}
	if !ok {
		return nil
	}
	return hit
}

// compute produces and caches a fresh result. It runs detached from the
// caller, so it always finishes and never caches a partial result.
func (s *Service) compute(ctx context.Context, client *model.ClientFeatureSet, fp string) (*model.RankedMatchResult, error) {
	coaches, err := s.store.ListActiveCoaches(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("matcher", "store_error")
		return nil, fmt.Errorf("%w: list coaches: %w", ErrStoreUnavailable, err)
	}
	pool := s.eligible(ctx, coaches)
	metrics.RecordCandidateCount(len(pool))

	var (
		matches  []model.MatchScore
		fallback bool
		degraded bool
		ttl      = s.cacheTTL
	)
	switch {
	case len(pool) == 0:
		matches = []model.MatchScore{}
		ttl = s.fallbackTTL
	default:
		matches, degraded, err = s.score(ctx, client, pool)
		if err != nil {
			reason := reasonProvider
			if errors.Is(err, context.DeadlineExceeded) {
				reason = reasonTimeout
			}
			metrics.RecordFallback(reason)
			s.logger.Warn(ctx, "scoring failed, serving fallback ranking",
				logger.String("client_id", client.ClientID),
				logger.String("reason", reason),
				logger.Error(err),
			)
			matches = s.ranker.Fallback(pool)
			fallback = true
			ttl = s.fallbackTTL
		} else {
			matches = s.ranker.Rank(matches)
		}
	}
	if degraded {
		// Keyword-only scores must not hold the slot for the full ttl.
		ttl = s.fallbackTTL
	}

	now := s.now().UTC()
	result := &model.RankedMatchResult{
		ID:          s.newID(),
		ClientID:    client.ClientID,
		Matches:     matches,
		GeneratedAt: now,
		ExpiresAt:   now.Add(ttl),
		Fallback:    fallback,
	}

	kind := "scored"
	switch {
	case fallback:
		kind = "fallback"
	case degraded:
		kind = "degraded"
	}
	if err := s.cache.Put(ctx, client.ClientID, fp, result, ttl); err != nil {
		metrics.RecordCacheError("put")
		s.logger.Warn(ctx, "cache write failed",
			logger.String("client_id", client.ClientID),
			logger.Error(err),
		)
	} else {
		metrics.RecordCacheWrite(kind)
	}
	return result, nil
}

// eligible drops inactive, unverified (when required) and malformed coaches.
func (s *Service) eligible(ctx context.Context, coaches []model.CoachFeatureSet) []model.CoachFeatureSet {
	out := make([]model.CoachFeatureSet, 0, len(coaches))
	for i := range coaches {
		c := &coaches[i]
		if !c.Eligible(s.requireVerified) {
			continue
		}
		if err := c.Validate(); err != nil {
			metrics.RecordSkippedCandidate()
			s.logger.Warn(ctx, "skipping malformed coach",
				logger.String("coach_id", c.CoachID),
				logger.Error(err),
			)
			continue
		}
		out = append(out, *c)
	}
	return out
}

type scored struct {
	matches  []model.MatchScore
	degraded bool
	err      error
}

// score runs normalization, embedding and scoring under the scoring timeout.
// The deadline holds even if the provider ignores cancellation. degraded
// reports that goal similarity fell back to keywords because the provider
// was unavailable.
func (s *Service) score(ctx context.Context, client *model.ClientFeatureSet, pool []model.CoachFeatureSet) (_ []model.MatchScore, degraded bool, _ error) {
	start := time.Now()
	defer func() { metrics.RecordScoringLatency(metrics.Elapsed(start)) }()

	ctx, cancel := context.WithTimeout(ctx, s.scoringTimeout)
	defer cancel()

	done := make(chan scored, 1)
	go func() {
		cf := s.normalizer.Client(client)
		coaches := make([]normalize.CoachFeatures, len(pool))
		for i := range pool {
			coaches[i] = s.normalizer.Coach(&pool[i])
		}
		degraded, err := s.normalizer.Embed(ctx, &cf, coaches)
		if err != nil {
			done <- scored{err: err}
			return
		}
		matches, err := s.scorer.ScoreAll(ctx, &cf, coaches)
		done <- scored{matches: matches, degraded: degraded, err: err}
	}()

	select {
	case r := <-done:
		return r.matches, r.degraded, r.err
	case <-ctx.Done():
		return nil, false, fmt.Errorf("scoring stage: %w", ctx.Err())
	}
}

// Invalidate drops the cached result for clientID.
func (s *Service) Invalidate(ctx context.Context, clientID string) error {
	if err := s.cache.Invalidate(ctx, clientID); err != nil {
		metrics.RecordCacheError("invalidate")
		return fmt.Errorf("invalidate %s: %w", clientID, err)
	}
	metrics.RecordCacheInvalidation()
	s.logger.Debug(ctx, "match cache invalidated", logger.String("client_id", clientID))
	return nil
}

// CacheInfo reports the live cache entry for clientID.
func (s *Service) CacheInfo(ctx context.Context, clientID string) (cache.Info, error) {
	info, err := s.cache.Info(ctx, clientID)
	if err != nil {
		metrics.RecordCacheError("info")
		return cache.Info{}, fmt.Errorf("cache info %s: %w", clientID, err)
	}
	return info, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"scoringTimeoutMs":   s.scoringTimeout.Milliseconds(),
		"cacheTtlSeconds":    int64(s.cacheTTL.Seconds()),
		"fallbackTtlSeconds": int64(s.fallbackTTL.Seconds()),
		"requireVerified":    s.requireVerified,
		"inflight":           s.group.Running(),
		"collapsedRequests":  s.group.Collapsed(),
	}
	if l, ok := s.cache.(interface{ Len() int }); ok {
		n := l.Len()
		stats["cacheEntries"] = n
		metrics.UpdateCacheEntries(n)
	}
	if c, ok := s.store.(interface {
		Counts(ctx context.Context) (int, int, error)
	}); ok {
		if clients, coaches, err := c.Counts(ctx); err == nil {
			stats["clients"] = clients
			stats["coaches"] = coaches
		}
	}
	return stats
}

// Close tears down the cache. Entries are not flushed anywhere.
func (s *Service) Close() error {
	if c, ok := s.cache.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
