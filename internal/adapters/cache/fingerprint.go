package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/goccy/go-json"

	"github.com/okian/coachmatch/internal/domain/model"
)

// keyPrefix namespaces result keys.
const keyPrefix = "match"

// canonicalClient fixes field order and sorts set-valued fields so the
// encoding does not depend on input ordering.
type canonicalClient struct {
	ClientID           string   `json:"client_id"`
	TargetCountries    []string `json:"target_countries"`
	CulturalGoals      []string `json:"cultural_goals"`
	PreferredLanguages []string `json:"preferred_languages"`
	Industry           string   `json:"industry"`
	FamilyStatus       string   `json:"family_status"`
	PreviousExpat      bool     `json:"previous_expat_experience"`
	Urgency            int      `json:"timeline_urgency"`
	BudgetMin          float64  `json:"budget_min"`
	BudgetMax          float64  `json:"budget_max"`
	CoachingStyle      string   `json:"coaching_style"`
	SpecificChallenges []string `json:"specific_challenges"`
	Timezone           string   `json:"timezone"`
}

func sorted(in []string) []string {
	out := slices.Clone(in)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return out
}

// Fingerprint returns a stable hex digest over every field of c. Set-valued
// fields are order independent; any other change yields a different digest.
func Fingerprint(c *model.ClientFeatureSet) (string, error) {
	b, err := json.Marshal(canonicalClient{
		ClientID:           c.ClientID,
		TargetCountries:    sorted(c.TargetCountries),
		CulturalGoals:      sorted(c.CulturalGoals),
		PreferredLanguages: sorted(c.PreferredLanguages),
		Industry:           c.Industry,
		FamilyStatus:       string(c.FamilyStatus),
		PreviousExpat:      c.PreviousExpat,
		Urgency:            c.Urgency,
		BudgetMin:          c.Budget.Min,
		BudgetMax:          c.Budget.Max,
		CoachingStyle:      string(c.CoachingStyle),
		SpecificChallenges: sorted(c.SpecificChallenges),
		Timezone:           c.Timezone,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", c.ClientID, err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Key composes the cache key for a client and fingerprint.
func Key(clientID, fingerprint string) string {
	return keyPrefix + ":" + clientID + ":" + fingerprint
}
