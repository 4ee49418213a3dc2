// Package api exposes the match engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/coachmatch/internal/adapters/cache"
	"github.com/okian/coachmatch/internal/adapters/http/swagger"
	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	RequestMatch(ctx context.Context, clientID string, opts service.MatchOptions) (*service.Outcome, error)
	Invalidate(ctx context.Context, clientID string) error
	CacheInfo(ctx context.Context, clientID string) (cache.Info, error)
}

// Server wires HTTP routes for the match API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	matchHandler  *MatchHandler
	logger        logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		matchHandler:  NewMatchHandler(deps),
		logger:        logger.Get().Named("http"),
	}
}

// Handler builds the chi router with every route.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Route("/v1/match", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.matchHandler.HandleMatch, "match"))
		r.Get("/cache/{clientID}", MetricsMiddleware(s.matchHandler.HandleCacheInfo, "cache_info"))
		r.Delete("/cache/{clientID}", MetricsMiddleware(s.matchHandler.HandleCacheClear, "cache_clear"))
	})

	swagger.Register(ctx, r)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps service errors to HTTP responses. Only data errors are
// expected here; anything else is a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrClientNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidProfile):
		return http.StatusUnprocessableEntity, "invalid_profile"
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, cache.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
