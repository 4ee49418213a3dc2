package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/okian/coachmatch/internal/adapters/http/client"
	"github.com/okian/coachmatch/pkg/logger"
)

// progressInterval is how often a verbose run logs its progress.
const progressInterval = time.Second

// Matcher is the part of the API client a load run needs.
type Matcher interface {
	Health(ctx context.Context) error
	Match(ctx context.Context, req client.MatchRequest) (*client.MatchResult, error)
}

// Validate checks cfg before a run.
func (c *Config) Validate() error {
	switch {
	case len(c.ClientIDs) == 0:
		return fmt.Errorf("%w: no client ids", ErrInvalidConfig)
	case c.Requests <= 0:
		return fmt.Errorf("%w: requests must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Limit < 0 || c.Limit > 10:
		return fmt.Errorf("%w: limit must be between 0 and 10", ErrInvalidConfig)
	case c.NoCache < 0 || c.NoCache > 1:
		return fmt.Errorf("%w: no-cache fraction must be between 0 and 1", ErrInvalidConfig)
	}
	return nil
}

type outcome struct {
	clientID string
	latency  time.Duration
	res      *client.MatchResult
	err      error
}

// Run fires cfg.Requests match requests from cfg.Workers goroutines and
// verifies every answer. Request failures are counted, not returned; Run only
// fails on bad config, an unhealthy service, or cancellation before any work.
func Run(ctx context.Context, cfg *Config, m Matcher) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	log := logger.Get().Named("loadgen")

	if err := m.Health(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	log.Info(ctx, "starting load run",
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Int("clients", len(cfg.ClientIDs)),
	)

	stats := &Stats{StartTime: time.Now()}
	jobs := make(chan MatchJob, cfg.Workers*2)
	results := make(chan outcome, cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				start := time.Now()
				res, err := m.Match(ctx, job.request())
				results <- outcome{clientID: job.ClientID, latency: time.Since(start), res: res, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		r := rand.New(rand.NewPCG(uint64(cfg.Requests), uint64(cfg.Workers)))
		for i := 0; i < cfg.Requests; i++ {
			job := MatchJob{
				ClientID: cfg.ClientIDs[i%len(cfg.ClientIDs)],
				Limit:    cfg.Limit,
				NoCache:  r.Float64() < cfg.NoCache,
			}
			select {
			case <-ctx.Done():
				return
			case jobs <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	lastReport := time.Now()
	for o := range results {
		stats.record(ctx, log, o)
		if cfg.Verbose && time.Since(lastReport) >= progressInterval {
			lastReport = time.Now()
			log.Info(ctx, "progress", logger.Int("done", stats.Requests), logger.Int("failed", stats.Failed))
		}
	}

	stats.Duration = time.Since(stats.StartTime)
	slices.Sort(stats.Latencies)

	if stats.Requests == 0 && ctx.Err() != nil {
		return stats, ctx.Err()
	}
	log.Info(ctx, "load run finished",
		logger.Int("requests", stats.Requests),
		logger.Int("failed", stats.Failed),
		logger.Int("malformed", stats.Malformed),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (s *Stats) record(ctx context.Context, log logger.Logger, o outcome) {
	s.Requests++
	s.Latencies = append(s.Latencies, o.latency)
	if o.err != nil {
		s.Failed++
		if !errors.Is(o.err, context.Canceled) {
			log.Debug(ctx, "match request failed", logger.Error(o.err))
		}
		return
	}
	if err := Verify(o.res); err != nil {
		s.Malformed++
		log.Warn(ctx, "malformed ranking", logger.String("client_id", o.clientID), logger.Error(err))
		return
	}
	switch {
	case o.res.Cached:
		s.Cached++
	case o.res.Fallback:
		s.Fallback++
	default:
		s.Scored++
	}
}

// MatchJob is one request of a load run.
type MatchJob struct {
	ClientID string
	Limit    int
	NoCache  bool
}

func (j MatchJob) request() client.MatchRequest {
	req := client.MatchRequest{ClientID: j.ClientID, Limit: j.Limit}
	if j.NoCache {
		useCache := false
		req.UseCache = &useCache
	}
	return req
}
