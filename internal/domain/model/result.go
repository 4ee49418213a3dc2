package model

import "time"

// MaxMatches caps the size of a ranked result.
const MaxMatches = 10

// ConfidenceBand is derived from the composite score and never stored on its own.
type ConfidenceBand string

// Confidence bands.
const (
	ConfidenceHigh   ConfidenceBand = "high"
	ConfidenceMedium ConfidenceBand = "medium"
	ConfidenceLow    ConfidenceBand = "low"
)

// BandFor maps a composite score to its confidence band.
func BandFor(score float64) ConfidenceBand {
	switch {
	case score >= 80:
		return ConfidenceHigh
	case score >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SubScores holds the per-dimension similarities, each in [0,1].
type SubScores struct {
	Language     float64 `json:"language"`
	Country      float64 `json:"country"`
	Goal         float64 `json:"goal"`
	Budget       float64 `json:"budget"`
	Availability float64 `json:"availability"`
}

// MatchScore is one scored coach.
type MatchScore struct {
	CoachID       string    `json:"coach_id"`
	Score         float64   `json:"match_score"`
	SubScores     SubScores `json:"sub_scores"`
	Rating        float64   `json:"rating"`
	TotalSessions int       `json:"total_sessions"`
}

// Confidence returns the band for this score.
func (m MatchScore) Confidence() ConfidenceBand {
	return BandFor(m.Score)
}

// RankedMatchResult is the output of one match computation.
type RankedMatchResult struct {
	ID          string       `json:"result_id"`
	ClientID    string       `json:"client_id"`
	Matches     []MatchScore `json:"matches"`
	GeneratedAt time.Time    `json:"generated_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	Fallback    bool         `json:"fallback"`
}

// Clone returns a deep copy so cached results cannot be mutated by callers.
func (r *RankedMatchResult) Clone() *RankedMatchResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.Matches != nil {
		out.Matches = make([]MatchScore, len(r.Matches))
		copy(out.Matches, r.Matches)
	}
	return &out
}

// Limit returns a copy holding at most n matches. n outside 1..MaxMatches keeps everything.
func (r *RankedMatchResult) Limit(n int) *RankedMatchResult {
	out := r.Clone()
	if out != nil && n > 0 && n < len(out.Matches) {
		out.Matches = out.Matches[:n]
	}
	return out
}
