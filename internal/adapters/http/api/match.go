package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/pkg/logger"
)

const maxBodyBytes = 1 << 16

// matchRequest mirrors the OpenAPI schema for POST /v1/match.
type matchRequest struct {
	ClientID string `json:"client_id"`
	Limit    int    `json:"limit"`
	UseCache *bool  `json:"use_cache"`
}

func (m matchRequest) validate() error {
	switch {
	case strings.TrimSpace(m.ClientID) == "":
		return fmt.Errorf("%w: missing client_id", ErrBadRequest)
	case m.Limit < 0 || m.Limit > model.MaxMatches:
		return fmt.Errorf("%w: limit must be between 1 and %d", ErrBadRequest, model.MaxMatches)
	}
	return nil
}

type subScores struct {
	Language     float64 `json:"language"`
	Country      float64 `json:"country"`
	Goal         float64 `json:"goal"`
	Budget       float64 `json:"budget"`
	Availability float64 `json:"availability"`
}

type matchEntry struct {
	CoachID       string    `json:"coach_id"`
	Rank          int       `json:"rank"`
	MatchScore    float64   `json:"match_score"`
	Confidence    string    `json:"confidence"`
	SubScores     subScores `json:"sub_scores"`
	Rating        float64   `json:"rating"`
	TotalSessions int       `json:"total_sessions"`
}

type matchResponse struct {
	ClientID     string       `json:"client_id"`
	ResultID     string       `json:"result_id"`
	Matches      []matchEntry `json:"matches"`
	TotalMatches int          `json:"total_matches"`
	Cached       bool         `json:"cached"`
	Fallback     bool         `json:"fallback"`
	GeneratedAt  time.Time    `json:"generated_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

type cacheInfoResponse struct {
	ClientID   string     `json:"client_id"`
	CacheKey   string     `json:"cache_key,omitempty"`
	Exists     bool       `json:"exists"`
	TTLSeconds int64      `json:"ttl_seconds"`
	Fallback   bool       `json:"fallback"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type clearResponse struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

// MatchHandler serves match and cache routes.
type MatchHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps Dependencies) *MatchHandler {
	return &MatchHandler{deps: deps, logger: logger.Get().Named("http")}
}

// HandleMatch handles POST /v1/match.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	opts := service.MatchOptions{Limit: req.Limit, UseCache: true}
	if req.UseCache != nil {
		opts.UseCache = *req.UseCache
	}

	out, err := h.deps.RequestMatch(r.Context(), req.ClientID, opts)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error(r.Context(), "match request failed",
				logger.String("client_id", req.ClientID),
				logger.Error(err),
			)
		}
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(out))
}

func toResponse(out *service.Outcome) matchResponse {
	res := out.Result
	entries := make([]matchEntry, 0, len(res.Matches))
	for i, m := range res.Matches {
		entries = append(entries, matchEntry{
			CoachID:    m.CoachID,
			Rank:       i + 1,
			MatchScore: m.Score,
			Confidence: string(m.Confidence()),
			SubScores: subScores{
				Language:     m.SubScores.Language,
				Country:      m.SubScores.Country,
				Goal:         m.SubScores.Goal,
				Budget:       m.SubScores.Budget,
				Availability: m.SubScores.Availability,
			},
			Rating:        m.Rating,
			TotalSessions: m.TotalSessions,
		})
	}
	return matchResponse{
		ClientID:     res.ClientID,
		ResultID:     res.ID,
		Matches:      entries,
		TotalMatches: len(entries),
		Cached:       out.Cached,
		Fallback:     res.Fallback,
		GeneratedAt:  res.GeneratedAt,
		ExpiresAt:    res.ExpiresAt,
	}
}

// HandleCacheInfo handles GET /v1/match/cache/{clientID}.
func (h *MatchHandler) HandleCacheInfo(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	info, err := h.deps.CacheInfo(r.Context(), clientID)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	resp := cacheInfoResponse{ClientID: clientID, Exists: info.Exists}
	if info.Exists {
		resp.CacheKey = info.Key
		resp.TTLSeconds = int64(info.TTL / time.Second)
		resp.Fallback = info.Fallback
		expires := info.ExpiresAt.UTC()
		resp.ExpiresAt = &expires
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleCacheClear handles DELETE /v1/match/cache/{clientID}.
func (h *MatchHandler) HandleCacheClear(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	if err := h.deps.Invalidate(r.Context(), clientID); err != nil {
		status, code := statusFor(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, clearResponse{ClientID: clientID, Status: "cleared"})
}
