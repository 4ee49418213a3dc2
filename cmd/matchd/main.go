package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/okian/coachmatch/internal/adapters/cache"
	"github.com/okian/coachmatch/internal/adapters/embedder"
	"github.com/okian/coachmatch/internal/adapters/http/api"
	"github.com/okian/coachmatch/internal/adapters/mq/events"
	"github.com/okian/coachmatch/internal/adapters/repository"
	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/config"
	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/internal/domain/normalize"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	cacheMetricsInterval      = 5 * time.Second
	nanosecondsPerMillisecond = 1e6

	// writeTimeout leaves room for a full scoring stage on top of the read.
	writeSlack = 5 * time.Second

	natsQueueGroup = "coachmatch"
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := checkDaemonConfig(cfg); err != nil {
		log.Error(ctx, "unsupported configuration", logger.Error(err))
		os.Exit(1)
	}

	d, err := newDaemon(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to start", logger.Error(err))
		os.Exit(1)
	}
	if err := d.run(ctx); err != nil {
		log.Error(ctx, "daemon stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// checkDaemonConfig rejects settings that only make sense when the engine is
// embedded in another process. The gochannel bus has no publisher outside
// the process that owns it, so a standalone daemon would never see an event.
func checkDaemonConfig(cfg *config.Config) error {
	if cfg.EventsDriver == config.EventsGoChannel {
		return fmt.Errorf("%w: events_driver %q is in-process only; use %q or %q",
			config.ErrInvalidConfig, config.EventsGoChannel, config.EventsNATS, config.EventsNone)
	}
	return nil
}

// daemon holds every long-lived component of the process.
type daemon struct {
	cfg      *config.Config
	store    repository.Store
	cache    *cache.InMemoryCache
	svc      *service.Service
	srv      *http.Server
	consumer *events.Consumer
	sub      message.Subscriber
	log      logger.Logger
}

// newDaemon builds the component graph from cfg. On error everything opened
// so far is closed again.
func newDaemon(ctx context.Context, cfg *config.Config) (_ *daemon, err error) {
	d := &daemon{cfg: cfg, log: logger.Get().Named("matchd")}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	d.store, err = openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.SeedPath != "" {
		clients, coaches, err := repository.LoadSeed(ctx, d.store, cfg.SeedPath)
		if err != nil {
			return nil, err
		}
		d.log.Info(ctx, "seed loaded", logger.String("path", cfg.SeedPath), logger.Int("clients", clients), logger.Int("coaches", coaches))
	}

	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	var normOpts []normalize.Option
	if provider != nil {
		normOpts = append(normOpts, normalize.WithProvider(provider))
	}

	d.cache = cache.NewInMemoryCache()
	d.svc = service.New(d.store, d.cache,
		service.WithScoringTimeout(cfg.ScoringTimeout()),
		service.WithCacheTTL(cfg.CacheTTL()),
		service.WithFallbackTTL(cfg.FallbackTTL()),
		service.WithRequireVerified(cfg.RequireVerified),
		service.WithNormalizer(normalize.New(normOpts...)),
	)

	d.sub, err = newSubscriber(cfg)
	if err != nil {
		return nil, err
	}
	if d.sub != nil {
		d.consumer = events.NewConsumer(d.sub, d.svc,
			events.WithTopics(cfg.ClientUpdatedTopic, cfg.CoachUpdatedTopic),
			events.WithDedupeWindow(cfg.EventDedupeWindow),
		)
	}

	stats := daemonStats{svc: d.svc}
	if b, ok := provider.(breakerStater); ok {
		stats.breaker = b
	}

	d.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewServer(d.svc, stats).Handler(ctx),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.ScoringTimeout() + readTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return d, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		return repository.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return repository.NewMemoryStore(), nil
	}
}

// newProvider returns nil when text similarity should fall back to keywords.
func newProvider(cfg *config.Config) (embedding.Provider, error) {
	switch cfg.Embedder {
	case config.EmbedderHashing:
		return embedder.NewHashing(cfg.EmbeddingDimensions)
	case config.EmbedderHTTP:
		return embedder.NewHTTP(cfg.EmbeddingURL,
			embedder.WithAPIKey(cfg.EmbeddingAPIKey),
			embedder.WithModel(cfg.EmbeddingModel),
			embedder.WithDimensions(cfg.EmbeddingDimensions),
			embedder.WithRateLimit(cfg.EmbeddingRPS, cfg.EmbeddingBurst),
			embedder.WithBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenTimeout()),
		), nil
	default:
		return nil, nil
	}
}

type breakerStater interface {
	State() string
}

// daemonStats adds process-level fields to the service stats.
type daemonStats struct {
	svc     *service.Service
	breaker breakerStater
}

func (s daemonStats) GetStats(ctx context.Context) map[string]any {
	stats := s.svc.GetStats(ctx)
	if s.breaker != nil {
		stats["embeddingBreaker"] = s.breaker.State()
	}
	return stats
}

// newSubscriber returns nil when profile events are disabled.
func newSubscriber(cfg *config.Config) (message.Subscriber, error) {
	wmLog := events.LogAdapter(logger.Get().Named("watermill"))
	switch cfg.EventsDriver {
	case config.EventsGoChannel:
		return events.NewGoChannel(wmLog), nil
	case config.EventsNATS:
		return events.NewNATSSubscriber(cfg.NATSURL, natsQueueGroup, wmLog)
	default:
		return nil, nil
	}
}

// run serves until ctx ends, then shuts everything down in reverse order.
func (d *daemon) run(ctx context.Context) error {
	defer d.close()

	go startSystemMetricsUpdater(ctx)
	go startCacheMetricsUpdater(ctx, d.cache)

	consumerDone := make(chan error, 1)
	if d.consumer != nil {
		go func() { consumerDone <- d.consumer.Run(ctx) }()
	} else {
		close(consumerDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		d.log.Info(ctx, "starting HTTP server", logger.String("addr", d.cfg.Addr))
		if err := d.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("%w: %w", api.ErrServe, err)
		}
	}
	d.log.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := d.srv.Shutdown(shutdownCtx); err != nil {
		d.log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	if d.consumer != nil {
		if err := d.consumer.Shutdown(shutdownCtx); err != nil {
			d.log.Error(shutdownCtx, "event consumer shutdown failed", logger.Error(err))
		}
		if err := <-consumerDone; err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error(shutdownCtx, "event consumer stopped with error", logger.Error(err))
		}
	}

	d.log.Info(shutdownCtx, "stopped")
	return runErr
}

func (d *daemon) close() {
	if d.sub != nil {
		if err := d.sub.Close(); err != nil {
			d.log.Warn(context.Background(), "close subscriber", logger.Error(err))
		}
		d.sub = nil
	}
	if d.svc != nil {
		_ = d.svc.Close()
		d.svc = nil
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.log.Warn(context.Background(), "close store", logger.Error(err))
		}
		d.store = nil
	}
}

// startSystemMetricsUpdater samples runtime stats until ctx ends.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startCacheMetricsUpdater publishes the cache size and sweeps expired entries.
func startCacheMetricsUpdater(ctx context.Context, c *cache.InMemoryCache) {
	ticker := time.NewTicker(cacheMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
