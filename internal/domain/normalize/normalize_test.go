package normalize_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/internal/domain/normalize"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func client() *model.ClientFeatureSet {
	return &model.ClientFeatureSet{
		ClientID:           "client-1",
		TargetCountries:    []string{"Germany", "DE", "fr"},
		CulturalGoals:      []string{"Understand workplace culture"},
		PreferredLanguages: []string{"English", "en", "de-DE"},
		Industry:           " Software ",
		Urgency:            5,
		Budget:             model.Budget{Min: 25, Max: 262.5},
		SpecificChallenges: []string{"Language barrier"},
	}
}

func coach() *model.CoachFeatureSet {
	return &model.CoachFeatureSet{
		CoachID:    "coach-1",
		Expertise:  []string{"Workplace culture", "Relocation"},
		Languages:  []string{"eng", "German"},
		Countries:  []string{"DEU"},
		Bio:        "Ten years helping families settle in Berlin.",
		HourlyRate: 600,
		Rating:     4.2,
	}
}

func TestCanonicalValues(t *testing.T) {
	convey.Convey("Given language inputs", t, func() {
		convey.So(normalize.CanonicalLanguage("en"), convey.ShouldEqual, "en")
		convey.So(normalize.CanonicalLanguage("English"), convey.ShouldEqual, "en")
		convey.So(normalize.CanonicalLanguage("german"), convey.ShouldEqual, "de")
		convey.So(normalize.CanonicalLanguage("de-DE"), convey.ShouldEqual, "de")
		convey.So(normalize.CanonicalLanguage("Elvish Sindarin"), convey.ShouldEqual, "elvish sindarin")
		convey.So(normalize.CanonicalLanguage("  "), convey.ShouldEqual, "")
	})

	convey.Convey("Given country inputs", t, func() {
		convey.So(normalize.CanonicalCountry("DE"), convey.ShouldEqual, "DE")
		convey.So(normalize.CanonicalCountry("DEU"), convey.ShouldEqual, "DE")
		convey.So(normalize.CanonicalCountry("Germany"), convey.ShouldEqual, "DE")
		convey.So(normalize.CanonicalCountry("Atlantis"), convey.ShouldEqual, "atlantis")
	})
}

func TestKeywords(t *testing.T) {
	convey.Convey("Given free text", t, func() {
		got := normalize.Keywords("Adapting to the Workplace culture!", "workplace, networking & friends")

		convey.So(got, convey.ShouldResemble, []string{"adapting", "culture", "friends", "networking", "workplace"})
		convey.So(normalize.Keywords(), convey.ShouldBeEmpty)
	})
}

func TestNormalizer(t *testing.T) {
	convey.Convey("Given a normalizer without a provider", t, func() {
		n := normalize.New()
		cf := n.Client(client())
		kf := n.Coach(coach())

		convey.Convey("Then client sets are canonical, deduplicated and sorted", func() {
			convey.So(cf.Languages, convey.ShouldResemble, []string{"de", "en"})
			convey.So(cf.Countries, convey.ShouldResemble, []string{"DE", "FR"})
			convey.So(cf.Industry, convey.ShouldEqual, "software")
			convey.So(cf.GoalText, convey.ShouldEqual, "Understand workplace culture. Language barrier")
		})

		convey.Convey("Then numeric fields are scaled to the domain bounds", func() {
			convey.So(cf.BudgetMinNorm, convey.ShouldEqual, 0)
			convey.So(cf.BudgetMaxNorm, convey.ShouldAlmostEqual, 0.5, 1e-9)
			convey.So(cf.UrgencyNorm, convey.ShouldEqual, 1)
			convey.So(kf.RateNorm, convey.ShouldEqual, 1)
		})

		convey.Convey("Then coach text includes expertise and bio", func() {
			convey.So(kf.Languages, convey.ShouldResemble, []string{"de", "en"})
			convey.So(kf.Countries, convey.ShouldResemble, []string{"DE"})
			convey.So(kf.ExpertiseText, convey.ShouldContainSubstring, "Relocation")
			convey.So(kf.ExpertiseText, convey.ShouldContainSubstring, "Berlin")
			convey.So(kf.Keywords, convey.ShouldContain, "berlin")
			convey.So(kf.Availability, convey.ShouldBeEmpty)
		})

		convey.Convey("Then normalization is deterministic", func() {
			convey.So(n.Client(client()), convey.ShouldResemble, cf)
			convey.So(n.Coach(coach()), convey.ShouldResemble, kf)
		})

		convey.Convey("Then Embed is a no-op", func() {
			coaches := []normalize.CoachFeatures{kf}
			degraded, err := n.Embed(context.Background(), &cf, coaches)
			convey.So(err, convey.ShouldBeNil)
			convey.So(degraded, convey.ShouldBeFalse)
			convey.So(cf.GoalVec.Neutral(), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a provider that records calls", t, func() {
		var calls atomic.Int32
		var seen []string
		p := embedding.ProviderFunc(func(_ context.Context, texts []string) ([]embedding.Vector, error) {
			calls.Add(1)
			seen = texts
			out := make([]embedding.Vector, len(texts))
			for i := range texts {
				out[i] = embedding.Vector{float64(i + 1)}
			}
			return out, nil
		})
		n := normalize.New(normalize.WithProvider(p))
		cf := n.Client(client())
		coaches := []normalize.CoachFeatures{n.Coach(coach()), n.Coach(coach())}

		degraded, err := n.Embed(context.Background(), &cf, coaches)

		convey.Convey("Then distinct texts are embedded in one batch", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(degraded, convey.ShouldBeFalse)
			convey.So(calls.Load(), convey.ShouldEqual, 1)
			convey.So(len(seen), convey.ShouldEqual, 2)
			convey.So(cf.GoalVec, convey.ShouldResemble, embedding.Vector{1})
			convey.So(coaches[0].ExpertiseVec, convey.ShouldResemble, embedding.Vector{2})
			convey.So(coaches[1].ExpertiseVec, convey.ShouldResemble, embedding.Vector{2})
		})
	})

	convey.Convey("Given failing providers", t, func() {
		cfOf := func(n *normalize.Normalizer) normalize.ClientFeatures { return n.Client(client()) }

		convey.Convey("When the provider is unavailable", func() {
			n := normalize.New(normalize.WithProvider(embedding.ProviderFunc(
				func(context.Context, []string) ([]embedding.Vector, error) {
					return nil, embedding.ErrUnavailable
				})))
			cf := cfOf(n)

			convey.Convey("Then vectors stay neutral and the result is marked degraded", func() {
				degraded, err := n.Embed(context.Background(), &cf, nil)
				convey.So(err, convey.ShouldBeNil)
				convey.So(degraded, convey.ShouldBeTrue)
				convey.So(cf.GoalVec.Neutral(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the provider times out", func() {
			n := normalize.New(normalize.WithProvider(embedding.ProviderFunc(
				func(ctx context.Context, _ []string) ([]embedding.Vector, error) {
					<-ctx.Done()
					return nil, ctx.Err()
				})))
			cf := cfOf(n)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			convey.Convey("Then the error is returned to the caller", func() {
				_, err := n.Embed(ctx, &cf, nil)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the provider returns the wrong number of vectors", func() {
			n := normalize.New(normalize.WithProvider(embedding.ProviderFunc(
				func(context.Context, []string) ([]embedding.Vector, error) {
					return nil, nil
				})))
			cf := cfOf(n)

			convey.Convey("Then it is treated as a provider failure", func() {
				_, err := n.Embed(context.Background(), &cf, nil)
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
