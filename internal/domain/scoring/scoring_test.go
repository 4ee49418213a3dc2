package scoring_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/okian/coachmatch/internal/domain/embedding"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/internal/domain/normalize"
	"github.com/okian/coachmatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func perfectPair() (normalize.ClientFeatures, normalize.CoachFeatures) {
	window := normalize.ClientWindow(time.UTC)
	client := normalize.ClientFeatures{
		ClientID:  "client-1",
		Languages: []string{"de", "en"},
		Countries: []string{"DE"},
		Keywords:  []string{"culture", "workplace"},
		GoalVec:   embedding.Vector{1, 0, 1},
		BudgetMax: 150,
		Window:    window,
	}
	coach := normalize.CoachFeatures{
		CoachID:       "coach-1",
		Languages:     []string{"de", "en"},
		Countries:     []string{"DE"},
		Keywords:      []string{"culture", "workplace"},
		ExpertiseVec:  embedding.Vector{2, 0, 2},
		HourlyRate:    100,
		Availability:  window,
		Rating:        4.8,
		TotalSessions: 120,
	}
	return client, coach
}

func TestWeights(t *testing.T) {
	Convey("The dimension weights sum to one", t, func() {
		So(scoring.WeightLanguage+scoring.WeightCountry+scoring.WeightGoal+scoring.WeightBudget+scoring.WeightAvailability,
			ShouldEqual, 10000)
	})
}

func TestScorer_Score(t *testing.T) {
	s := scoring.New()

	Convey("Given a client and coach matching on every dimension", t, func() {
		client, coach := perfectPair()
		got := s.Score(&client, &coach)

		Convey("Then the composite is exactly 100", func() {
			So(got.Score, ShouldEqual, 100)
			So(got.CoachID, ShouldEqual, "coach-1")
			So(got.Rating, ShouldEqual, 4.8)
			So(got.TotalSessions, ShouldEqual, 120)
			So(got.Confidence(), ShouldEqual, model.ConfidenceHigh)
		})

		Convey("When the coach charges above the client's maximum budget", func() {
			client.BudgetMax = 80
			coach.HourlyRate = 100
			got := s.Score(&client, &coach)

			Convey("Then budget scores 0.5 and the composite is 92.5", func() {
				So(got.SubScores.Budget, ShouldEqual, 0.5)
				So(got.Score, ShouldEqual, 92.5)
			})
		})

		Convey("When the coach declares no availability", func() {
			coach.Availability = nil
			got := s.Score(&client, &coach)

			Convey("Then availability scores 0", func() {
				So(got.SubScores.Availability, ShouldEqual, 0)
				So(got.Score, ShouldEqual, 90)
			})
		})

		Convey("When the client has no preferred languages", func() {
			client.Languages = nil
			got := s.Score(&client, &coach)

			Convey("Then the language dimension scores 0", func() {
				So(got.SubScores.Language, ShouldEqual, 0)
				So(got.Score, ShouldEqual, 75)
			})
		})

		Convey("When embeddings are neutral", func() {
			client.GoalVec = nil
			coach.Keywords = []string{"culture", "relocation", "tax"}
			got := s.Score(&client, &coach)

			Convey("Then goal similarity falls back to keyword overlap", func() {
				So(got.SubScores.Goal, ShouldAlmostEqual, 0.25, 1e-9)
			})
		})
	})
}

func TestSimilarityHelpers(t *testing.T) {
	Convey("Jaccard over sorted sets", t, func() {
		So(scoring.Jaccard([]string{"a", "b"}, []string{"b", "c"}), ShouldAlmostEqual, 1.0/3.0, 1e-9)
		So(scoring.Jaccard([]string{"a"}, []string{"a"}), ShouldEqual, 1)
		So(scoring.Jaccard(nil, nil), ShouldEqual, 0)
		So(scoring.Jaccard([]string{"a"}, nil), ShouldEqual, 0)
	})

	Convey("Budget is a step function", t, func() {
		So(scoring.BudgetScore(100, 100), ShouldEqual, 1)
		So(scoring.BudgetScore(100, 25), ShouldEqual, 1)
		So(scoring.BudgetScore(100, 100.01), ShouldEqual, 0.5)
		So(scoring.BudgetScore(10, 500), ShouldEqual, 0.5)
	})

	Convey("Availability is a covered fraction", t, func() {
		client := []normalize.Interval{{Start: 0, End: 100}}
		So(scoring.AvailabilityScore(client, []normalize.Interval{{Start: 50, End: 300}}), ShouldEqual, 0.5)
		So(scoring.AvailabilityScore(client, nil), ShouldEqual, 0)
		So(scoring.AvailabilityScore(nil, client), ShouldEqual, 0)
	})
}

func TestCompositeClamp(t *testing.T) {
	Convey("Given random sub-scores including out-of-range values", t, func() {
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test input
		for i := 0; i < 1000; i++ {
			sub := model.SubScores{
				Language:     rng.Float64()*4 - 2,
				Country:      rng.Float64()*4 - 2,
				Goal:         rng.Float64()*4 - 2,
				Budget:       rng.Float64()*4 - 2,
				Availability: rng.Float64()*4 - 2,
			}
			score := scoring.Composite(sub)
			So(score, ShouldBeBetweenOrEqual, 0, 100)
		}

		So(scoring.Composite(model.SubScores{Language: 5, Country: 5, Goal: 5, Budget: 5, Availability: 5}), ShouldEqual, 100)
		So(scoring.Composite(model.SubScores{Language: -1, Country: -1, Goal: -1, Budget: -1, Availability: -1}), ShouldEqual, 0)
	})
}

func TestScorer_ScoreAll(t *testing.T) {
	s := scoring.New()

	Convey("Given several coaches", t, func() {
		client, coach := perfectPair()
		other := coach
		other.CoachID = "coach-2"
		coaches := []normalize.CoachFeatures{coach, other}

		Convey("When the context is live", func() {
			got, err := s.ScoreAll(context.Background(), &client, coaches)

			Convey("Then every coach is scored in input order", func() {
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 2)
				So(got[1].CoachID, ShouldEqual, "coach-2")
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			got, err := s.ScoreAll(ctx, &client, coaches)

			Convey("Then scoring stops with the context error", func() {
				So(got, ShouldBeNil)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}
