package client

import "time"

// MatchRequest is the body of POST /v1/match.
type MatchRequest struct {
	ClientID string `json:"client_id"`
	Limit    int    `json:"limit,omitempty"`
	UseCache *bool  `json:"use_cache,omitempty"`
}

// SubScores are the per-dimension scores in 0..1.
type SubScores struct {
	Language     float64 `json:"language"`
	Country      float64 `json:"country"`
	Goal         float64 `json:"goal"`
	Budget       float64 `json:"budget"`
	Availability float64 `json:"availability"`
}

// Match is one ranked coach.
type Match struct {
	CoachID       string    `json:"coach_id"`
	Rank          int       `json:"rank"`
	MatchScore    float64   `json:"match_score"`
	Confidence    string    `json:"confidence"`
	SubScores     SubScores `json:"sub_scores"`
	Rating        float64   `json:"rating"`
	TotalSessions int       `json:"total_sessions"`
}

// MatchResult is the answer to a match request.
type MatchResult struct {
	ClientID     string    `json:"client_id"`
	ResultID     string    `json:"result_id"`
	Matches      []Match   `json:"matches"`
	TotalMatches int       `json:"total_matches"`
	Cached       bool      `json:"cached"`
	Fallback     bool      `json:"fallback"`
	GeneratedAt  time.Time `json:"generated_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CacheInfo describes the cached result for a client.
type CacheInfo struct {
	ClientID   string     `json:"client_id"`
	CacheKey   string     `json:"cache_key,omitempty"`
	Exists     bool       `json:"exists"`
	TTLSeconds int64      `json:"ttl_seconds"`
	Fallback   bool       `json:"fallback"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ClearResult acknowledges a cache clear.
type ClearResult struct {
	ClientID string `json:"client_id"`
	Status   string `json:"status"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
