package loadgen

import (
	"fmt"
	"math"

	"github.com/okian/coachmatch/internal/adapters/http/client"
)

// orderScale matches the fixed-point precision the ranker compares at.
const orderScale = 1_000_000

// Verify checks that a ranking is consistent: ranks run 1..n, scores are in
// 0..100, no coach appears twice, and neighbours are in ranking order. Scored
// results order by score, then rating, then coach id. Fallback results order
// by rating, then sessions, then coach id.
func Verify(res *client.MatchResult) error {
	if res == nil {
		return fmt.Errorf("%w: empty response", ErrMalformed)
	}
	if res.TotalMatches != len(res.Matches) {
		return fmt.Errorf("%w: total_matches %d but %d entries", ErrMalformed, res.TotalMatches, len(res.Matches))
	}
	seen := make(map[string]struct{}, len(res.Matches))
	for i, m := range res.Matches {
		if m.Rank != i+1 {
			return fmt.Errorf("%w: entry %d has rank %d", ErrMalformed, i, m.Rank)
		}
		if _, dup := seen[m.CoachID]; dup {
			return fmt.Errorf("%w: coach %s listed twice", ErrMalformed, m.CoachID)
		}
		seen[m.CoachID] = struct{}{}
		if m.MatchScore < 0 || m.MatchScore > 100 {
			return fmt.Errorf("%w: coach %s score %.2f out of range", ErrMalformed, m.CoachID, m.MatchScore)
		}
		if i == 0 {
			continue
		}
		if err := checkOrder(&res.Matches[i-1], &m, res.Fallback); err != nil {
			return fmt.Errorf("%w: entries %d and %d: %w", ErrMalformed, i-1, i, err)
		}
	}
	return nil
}

func checkOrder(prev, cur *client.Match, fallback bool) error {
	if !fallback {
		if ps, cs := fixed(prev.MatchScore), fixed(cur.MatchScore); ps != cs {
			if cs > ps {
				return fmt.Errorf("score %.2f above %.2f", cur.MatchScore, prev.MatchScore)
			}
			return nil
		}
	}
	if pr, cr := fixed(prev.Rating), fixed(cur.Rating); pr != cr {
		if cr > pr {
			return fmt.Errorf("rating %.2f above %.2f", cur.Rating, prev.Rating)
		}
		return nil
	}
	if fallback && prev.TotalSessions != cur.TotalSessions {
		if cur.TotalSessions > prev.TotalSessions {
			return fmt.Errorf("sessions %d above %d", cur.TotalSessions, prev.TotalSessions)
		}
		return nil
	}
	if cur.CoachID < prev.CoachID {
		return fmt.Errorf("coach %s after %s on a full tie", cur.CoachID, prev.CoachID)
	}
	return nil
}

func fixed(x float64) int64 {
	return int64(math.Round(x * orderScale))
}
