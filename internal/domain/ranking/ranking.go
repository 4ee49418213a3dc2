// Package ranking orders scored candidates into a bounded, deterministic result.
//
// Ordering: score DESC, then rating DESC, then coachID ASC (total order).
// Fallback ordering skips scoring entirely: rating DESC, then sessions DESC, then coachID ASC.
package ranking

import (
	"math"
	"slices"

	"github.com/okian/coachmatch/internal/domain/model"
)

// scoreScale converts scores and ratings to fixed point so comparisons are
// immune to float noise below the displayed precision.
const scoreScale = 1_000_000

type fixed int64

func toFixed(x float64) fixed {
	if math.IsNaN(x) {
		return 0
	}
	return fixed(math.Round(x * scoreScale))
}

// less returns true if a should appear before b in a scored ranking.
func less(a, b *model.MatchScore) bool {
	if as, bs := toFixed(a.Score), toFixed(b.Score); as != bs {
		return as > bs
	}
	if ar, br := toFixed(a.Rating), toFixed(b.Rating); ar != br {
		return ar > br
	}
	return a.CoachID < b.CoachID
}

// fallbackLess returns true if a should appear before b in a fallback ranking.
func fallbackLess(a, b *model.MatchScore) bool {
	if ar, br := toFixed(a.Rating), toFixed(b.Rating); ar != br {
		return ar > br
	}
	if a.TotalSessions != b.TotalSessions {
		return a.TotalSessions > b.TotalSessions
	}
	return a.CoachID < b.CoachID
}

func cmpWith(lessFn func(a, b *model.MatchScore) bool) func(a, b model.MatchScore) int {
	return func(a, b model.MatchScore) int {
		switch {
		case lessFn(&a, &b):
			return -1
		case lessFn(&b, &a):
			return 1
		}
		return 0
	}
}

// Ranker sorts, deduplicates and truncates candidate scores.
type Ranker struct {
	limit int
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithLimit caps the result size. Values outside 1..model.MaxMatches are ignored.
func WithLimit(n int) Option {
	return func(r *Ranker) {
		if n > 0 && n <= model.MaxMatches {
			r.limit = n
		}
	}
}

// New creates a Ranker returning at most model.MaxMatches entries by default.
func New(opts ...Option) *Ranker {
	r := &Ranker{limit: model.MaxMatches}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank orders scored candidates. Duplicate coach IDs keep their best entry.
// The input slice is not modified.
func (r *Ranker) Rank(scores []model.MatchScore) []model.MatchScore {
	return r.top(dedupe(scores, less), less)
}

// Fallback ranks eligible coaches by rating and session count with a zero
// composite score. It never consults the scorer.
func (r *Ranker) Fallback(coaches []model.CoachFeatureSet) []model.MatchScore {
	scores := make([]model.MatchScore, 0, len(coaches))
	for i := range coaches {
		scores = append(scores, model.MatchScore{
			CoachID:       coaches[i].CoachID,
			Rating:        coaches[i].Rating,
			TotalSessions: coaches[i].TotalSessions,
		})
	}
	return r.top(dedupe(scores, fallbackLess), fallbackLess)
}

func (r *Ranker) top(scores []model.MatchScore, lessFn func(a, b *model.MatchScore) bool) []model.MatchScore {
	slices.SortFunc(scores, cmpWith(lessFn))
	if len(scores) > r.limit {
		scores = scores[:r.limit]
	}
	return scores
}

// dedupe copies scores keeping the first-ranked entry per coach.
func dedupe(scores []model.MatchScore, lessFn func(a, b *model.MatchScore) bool) []model.MatchScore {
	pos := make(map[string]int, len(scores))
	out := make([]model.MatchScore, 0, len(scores))
	for i := range scores {
		s := scores[i]
		if j, seen := pos[s.CoachID]; seen {
			if lessFn(&s, &out[j]) {
				out[j] = s
			}
			continue
		}
		pos[s.CoachID] = len(out)
		out = append(out, s)
	}
	return out
}
