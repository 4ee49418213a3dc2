package loadgen

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/coachmatch/internal/adapters/repository"
	"github.com/okian/coachmatch/internal/domain/model"
)

var (
	countries  = []string{"DE", "NL", "PT", "ES", "SG", "CA", "AE", "JP"}
	languages  = []string{"en", "de", "nl", "pt", "es", "zh", "ar", "ja", "fr"}
	timezones  = []string{"UTC", "Europe/Berlin", "Europe/Lisbon", "Asia/Singapore", "America/Toronto", "Asia/Dubai", "Asia/Tokyo"}
	goals      = []string{"business culture", "local networking", "language confidence", "family integration", "workplace communication", "social life", "career growth"}
	challenges = []string{"housing", "bureaucracy", "loneliness", "school search", "salary negotiation", "visa paperwork", "healthcare"}
	styles     = []model.CoachingStyle{model.StyleDirective, model.StyleCollaborative, model.StyleSupportive, model.StyleStructured, model.StyleFlexible}
	families   = []model.FamilyStatus{model.FamilySingle, model.FamilyCouple, model.FamilyWithChildren, model.FamilySingleParent}
)

// GenerateSeed builds a fixture of valid profiles. The same seed always
// yields the same fixture.
func GenerateSeed(clients, coaches int, seed uint64) *repository.Seed {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := &repository.Seed{
		Clients: make([]model.ClientFeatureSet, 0, clients),
		Coaches: make([]model.CoachFeatureSet, 0, coaches),
	}
	for i := 0; i < clients; i++ {
		out.Clients = append(out.Clients, generateClient(r, i))
	}
	for i := 0; i < coaches; i++ {
		out.Coaches = append(out.Coaches, generateCoach(r, i))
	}
	return out
}

// ClientIDs returns the ids of every client in seed.
func ClientIDs(seed *repository.Seed) []string {
	ids := make([]string, len(seed.Clients))
	for i := range seed.Clients {
		ids[i] = seed.Clients[i].ClientID
	}
	return ids
}

func generateClient(r *rand.Rand, i int) model.ClientFeatureSet {
	budgetMin := float64(20 + r.IntN(60))
	return model.ClientFeatureSet{
		ClientID:           fmt.Sprintf("client-%04d", i),
		TargetCountries:    pick(r, countries, 1+r.IntN(2)),
		CulturalGoals:      pick(r, goals, 1+r.IntN(3)),
		PreferredLanguages: pick(r, languages, 1+r.IntN(2)),
		FamilyStatus:       families[r.IntN(len(families))],
		PreviousExpat:      r.IntN(2) == 0,
		Urgency:            1 + r.IntN(5),
		Budget:             model.Budget{Min: budgetMin, Max: budgetMin + float64(20+r.IntN(150))},
		CoachingStyle:      styles[r.IntN(len(styles))],
		SpecificChallenges: pick(r, challenges, 1+r.IntN(3)),
		Timezone:           timezones[r.IntN(len(timezones))],
	}
}

func generateCoach(r *rand.Rand, i int) model.CoachFeatureSet {
	tz := timezones[r.IntN(len(timezones))]
	var windows []model.AvailabilityWindow
	for day := time.Sunday; day <= time.Saturday; day++ {
		if r.IntN(3) == 0 {
			continue
		}
		start := 6*60 + r.IntN(8)*60
		windows = append(windows, model.AvailabilityWindow{
			Day:      day,
			Start:    start,
			End:      start + 60 + r.IntN(6)*60,
			Timezone: tz,
		})
	}
	return model.CoachFeatureSet{
		CoachID:       fmt.Sprintf("coach-%04d", i),
		Expertise:     append(pick(r, goals, 1+r.IntN(2)), pick(r, challenges, 1+r.IntN(2))...),
		Languages:     pick(r, languages, 1+r.IntN(3)),
		Countries:     pick(r, countries, 1+r.IntN(3)),
		HourlyRate:    float64(40 + r.IntN(160)),
		Availability:  windows,
		Rating:        float64(30+r.IntN(21)) / 10,
		TotalSessions: r.IntN(800),
		Verified:      r.IntN(5) != 0,
		Active:        r.IntN(10) != 0,
	}
}

// pick returns n distinct values from pool in random order.
func pick(r *rand.Rand, pool []string, n int) []string {
	idx := r.Perm(len(pool))
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = pool[idx[i]]
	}
	return out
}
