// Package scoring computes per-dimension similarities and the weighted composite score.
package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/internal/domain/normalize"
)

// Dimension weights in basis points. They sum to 10000 so a perfect match is exactly 100.
const (
	WeightLanguage     = 2500
	WeightCountry      = 2000
	WeightGoal         = 3000
	WeightBudget       = 1500
	WeightAvailability = 1000

	totalWeight = WeightLanguage + WeightCountry + WeightGoal + WeightBudget + WeightAvailability
)

// Budget step values.
const (
	budgetAffordable = 1.0
	budgetOver       = 0.5
)

const maxScoreValue = 100

// Scorer scores normalized coaches against a normalized client. It is stateless
// and safe for concurrent use.
type Scorer struct{}

// New creates a Scorer.
func New() *Scorer { return &Scorer{} }

// Score computes the match score for one client and coach pair.
func (s *Scorer) Score(client *normalize.ClientFeatures, coach *normalize.CoachFeatures) model.MatchScore {
	sub := model.SubScores{
		Language:     Jaccard(client.Languages, coach.Languages),
		Country:      Jaccard(client.Countries, coach.Countries),
		Goal:         GoalSimilarity(client, coach),
		Budget:       BudgetScore(client.BudgetMax, coach.HourlyRate),
		Availability: AvailabilityScore(client.Window, coach.Availability),
	}
	return model.MatchScore{
		CoachID:       coach.CoachID,
		Score:         Composite(sub),
		SubScores:     sub,
		Rating:        coach.Rating,
		TotalSessions: coach.TotalSessions,
	}
}

// ScoreAll scores every coach, stopping early if ctx is done.
func (s *Scorer) ScoreAll(ctx context.Context, client *normalize.ClientFeatures, coaches []normalize.CoachFeatures) ([]model.MatchScore, error) {
	out := make([]model.MatchScore, 0, len(coaches))
	for i := range coaches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scoring interrupted after %d of %d: %w", i, len(coaches), err)
		}
		out = append(out, s.Score(client, &coaches[i]))
	}
	return out, nil
}

// Composite combines sub-scores into a 0-100 score rounded to two decimals.
func Composite(sub model.SubScores) float64 {
	sum := WeightLanguage*clamp01(sub.Language) +
		WeightCountry*clamp01(sub.Country) +
		WeightGoal*clamp01(sub.Goal) +
		WeightBudget*clamp01(sub.Budget) +
		WeightAvailability*clamp01(sub.Availability)

	score := sum * maxScoreValue / totalWeight
	score = math.Max(0, math.Min(maxScoreValue, score))
	return math.Round(score*100) / 100
}

// Jaccard returns |a∩b| / |a∪b| for sorted, deduplicated sets. An empty a scores 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			inter++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// GoalSimilarity is the embedding cosine between client goals and coach
// expertise, or keyword Jaccard when either vector is neutral.
func GoalSimilarity(client *normalize.ClientFeatures, coach *normalize.CoachFeatures) float64 {
	if client.GoalVec.Neutral() || coach.ExpertiseVec.Neutral() {
		return Jaccard(client.Keywords, coach.Keywords)
	}
	return embedding.Cosine(client.GoalVec, coach.ExpertiseVec)
}

// BudgetScore is 1 when the rate fits the client's maximum, otherwise 0.5.
func BudgetScore(budgetMax, rate float64) float64 {
	if rate <= budgetMax {
		return budgetAffordable
	}
	return budgetOver
}

// AvailabilityScore is the fraction of the client window covered by the coach.
// A coach without windows scores 0.
func AvailabilityScore(client, coach []normalize.Interval) float64 {
	total := normalize.Total(client)
	if total == 0 || len(coach) == 0 {
		return 0
	}
	return clamp01(float64(normalize.Overlap(client, coach)) / float64(total))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
