// Package normalize turns raw client and coach records into comparable features.
package normalize

import (
	"github.com/okian/coachmatch/internal/domain/embedding"
)

// Fixed domain bounds for numeric scaling.
const (
	MinHourlyRate = 25.0
	MaxHourlyRate = 500.0
	MinUrgency    = 1
	MaxUrgency    = 5
)

// ClientFeatures is the normalized form of a model.ClientFeatureSet.
type ClientFeatures struct {
	ClientID  string
	Languages []string
	Countries []string

	// Keywords is the token set of goals and challenges.
	Keywords []string
	GoalText string
	GoalVec  embedding.Vector

	Industry  string
	BudgetMax float64

	// Scaled to [0,1] on the hourly rate bounds.
	BudgetMinNorm float64
	BudgetMaxNorm float64
	UrgencyNorm   float64

	// Window is the implied daily 09:00-21:00 local window expressed in
	// minutes of the UTC reference week.
	Window []Interval
}

// CoachFeatures is the normalized form of a model.CoachFeatureSet.
type CoachFeatures struct {
	CoachID   string
	Languages []string
	Countries []string

	// Keywords is the token set of expertise areas and bio.
	Keywords      []string
	ExpertiseText string
	ExpertiseVec  embedding.Vector

	HourlyRate float64
	RateNorm   float64

	// Availability holds merged windows in minutes of the UTC reference week.
	Availability []Interval

	Rating        float64
	TotalSessions int
}

func scale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	s := (v - lo) / (hi - lo)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
