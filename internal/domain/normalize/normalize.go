package normalize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/pkg/logger"
)

// Normalizer converts profiles into features and attaches embeddings.
// Normalization is deterministic: identical input yields identical features.
type Normalizer struct {
	provider embedding.Provider
	log      logger.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithProvider sets the embedding provider. Without one, text vectors stay neutral.
func WithProvider(p embedding.Provider) Option {
	return func(n *Normalizer) {
		n.provider = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Normalizer) {
		if l != nil {
			n.log = l
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{}
	for _, opt := range opts {
		opt(n)
	}
	if n.log == nil {
		n.log = logger.Get().Named("normalizer")
	}
	return n
}

// Client normalizes a client snapshot. Text vectors are filled by Embed.
func (n *Normalizer) Client(c *model.ClientFeatureSet) ClientFeatures {
	goalParts := append(append([]string{}, c.CulturalGoals...), c.SpecificChallenges...)
	return ClientFeatures{
		ClientID:      c.ClientID,
		Languages:     canonicalSet(c.PreferredLanguages, CanonicalLanguage),
		Countries:     canonicalSet(c.TargetCountries, CanonicalCountry),
		Keywords:      Keywords(goalParts...),
		GoalText:      joinText(goalParts),
		Industry:      foldText(c.Industry),
		BudgetMax:     c.Budget.Max,
		BudgetMinNorm: scale(c.Budget.Min, MinHourlyRate, MaxHourlyRate),
		BudgetMaxNorm: scale(c.Budget.Max, MinHourlyRate, MaxHourlyRate),
		UrgencyNorm:   scale(float64(c.Urgency), MinUrgency, MaxUrgency),
		Window:        ClientWindow(c.Location()),
	}
}

// Coach normalizes a coach snapshot. Text vectors are filled by Embed.
func (n *Normalizer) Coach(c *model.CoachFeatureSet) CoachFeatures {
	textParts := append([]string{}, c.Expertise...)
	if bio := strings.TrimSpace(c.Bio); bio != "" {
		textParts = append(textParts, bio)
	}
	return CoachFeatures{
		CoachID:       c.CoachID,
		Languages:     canonicalSet(c.Languages, CanonicalLanguage),
		Countries:     canonicalSet(c.Countries, CanonicalCountry),
		Keywords:      Keywords(textParts...),
		ExpertiseText: joinText(textParts),
		HourlyRate:    c.HourlyRate,
		RateNorm:      scale(c.HourlyRate, MinHourlyRate, MaxHourlyRate),
		Availability:  CoachWindows(c.Availability),
		Rating:        c.Rating,
		TotalSessions: c.TotalSessions,
	}
}

// Embed attaches text vectors to the client and coaches with one batched
// provider call over the distinct texts.
//
// A missing or unavailable provider leaves vectors neutral and returns a nil
// error. degraded is true only when a configured provider was unavailable.
// Any other provider failure, including ctx expiry, is returned.
func (n *Normalizer) Embed(ctx context.Context, client *ClientFeatures, coaches []CoachFeatures) (degraded bool, err error) {
	if n.provider == nil {
		return false, nil
	}

	index := make(map[string]int)
	var texts []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := index[s]; !ok {
			index[s] = len(texts)
			texts = append(texts, s)
		}
	}
	add(client.GoalText)
	for i := range coaches {
		add(coaches[i].ExpertiseText)
	}
	if len(texts) == 0 {
		return false, nil
	}

	vectors, err := n.provider.Embed(ctx, texts)
	if errors.Is(err, embedding.ErrUnavailable) {
		n.log.Warn(ctx, "embedding provider unavailable, using neutral vectors",
			logger.String("client_id", client.ClientID),
			logger.Error(err),
		)
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return false, fmt.Errorf("embed: provider returned %d vectors for %d texts", len(vectors), len(texts))
	}

	lookup := func(s string) embedding.Vector {
		if i, ok := index[s]; ok {
			return vectors[i]
		}
		return nil
	}
	client.GoalVec = lookup(client.GoalText)
	for i := range coaches {
		coaches[i].ExpertiseVec = lookup(coaches[i].ExpertiseText)
	}
	return false, nil
}

func joinText(parts []string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, ". ")
}
