// Package model contains domain models passed between layers.
package model

import "time"

// FamilyStatus describes who relocates with the client.
type FamilyStatus string

// Known family statuses.
const (
	FamilySingle       FamilyStatus = "single"
	FamilyCouple       FamilyStatus = "couple"
	FamilyWithChildren FamilyStatus = "family"
	FamilySingleParent FamilyStatus = "single_parent"
	FamilyOther        FamilyStatus = "other"
)

// CoachingStyle is the client's preferred way of being coached.
type CoachingStyle string

// Known coaching styles.
const (
	StyleDirective     CoachingStyle = "directive"
	StyleCollaborative CoachingStyle = "collaborative"
	StyleSupportive    CoachingStyle = "supportive"
	StyleStructured    CoachingStyle = "structured"
	StyleFlexible      CoachingStyle = "flexible"
)

// Budget is the hourly amount a client is willing to pay.
type Budget struct {
	Min float64 `json:"min" validate:"gte=0"`
	Max float64 `json:"max" validate:"gte=0,gtefield=Min"`
}

// ClientFeatureSet is the matching-relevant snapshot of a client profile.
// Field names mirror the onboarding quiz. Preference sets may be empty; an
// empty set scores 0 on its dimension.
type ClientFeatureSet struct {
	ClientID           string        `json:"client_id" validate:"required"`
	TargetCountries    []string      `json:"target_countries" validate:"omitempty,dive,required"`
	CulturalGoals      []string      `json:"cultural_goals" validate:"omitempty,dive,required"`
	PreferredLanguages []string      `json:"preferred_languages" validate:"omitempty,dive,required"`
	Industry           string        `json:"industry"`
	FamilyStatus       FamilyStatus  `json:"family_status" validate:"omitempty,oneof=single couple family single_parent other"`
	PreviousExpat      bool          `json:"previous_expat_experience"`
	Urgency            int           `json:"timeline_urgency" validate:"min=1,max=5"`
	Budget             Budget        `json:"budget_range"`
	CoachingStyle      CoachingStyle `json:"coaching_style" validate:"omitempty,oneof=directive collaborative supportive structured flexible"`
	SpecificChallenges []string      `json:"specific_challenges" validate:"omitempty,dive,required"`

	// Timezone is an IANA zone name. Empty means UTC.
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// Location resolves the client timezone, defaulting to UTC.
func (c *ClientFeatureSet) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AvailabilityWindow is a weekly recurring slot in the coach's local time.
// Start and End are minutes since local midnight.
type AvailabilityWindow struct {
	Day      time.Weekday `json:"day" validate:"min=0,max=6"`
	Start    int          `json:"start_minute" validate:"min=0,max=1439"`
	End      int          `json:"end_minute" validate:"gtfield=Start,max=1440"`
	Timezone string       `json:"timezone" validate:"required,timezone"`
}

// CoachFeatureSet is the matching-relevant snapshot of a coach profile.
type CoachFeatureSet struct {
	CoachID       string               `json:"coach_id" validate:"required"`
	Expertise     []string             `json:"expertise" validate:"dive,required"`
	Languages     []string             `json:"languages" validate:"dive,required"`
	Countries     []string             `json:"countries" validate:"dive,required"`
	Bio           string               `json:"bio,omitempty"`
	HourlyRate    float64              `json:"hourly_rate" validate:"gte=0"`
	Availability  []AvailabilityWindow `json:"availability" validate:"dive"`
	Rating        float64              `json:"rating" validate:"gte=0,lte=5"`
	TotalSessions int                  `json:"total_sessions" validate:"gte=0"`
	Verified      bool                 `json:"is_verified"`
	Active        bool                 `json:"is_active"`
}

// Eligible reports whether the coach may enter the candidate pool.
// requireVerified additionally drops unverified coaches.
func (c *CoachFeatureSet) Eligible(requireVerified bool) bool {
	if !c.Active {
		return false
	}
	return c.Verified || !requireVerified
}
