package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachmatch/internal/adapters/cache"
	"github.com/okian/coachmatch/internal/adapters/http/api"
	"github.com/okian/coachmatch/internal/adapters/http/client"
	"github.com/okian/coachmatch/internal/adapters/repository"
	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/domain/model"
	"github.com/okian/coachmatch/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func seed(ctx context.Context, s repository.Store) {
	_ = s.UpsertClient(ctx, &model.ClientFeatureSet{
		ClientID:           "client-1",
		TargetCountries:    []string{"NL"},
		CulturalGoals:      []string{"dutch directness"},
		PreferredLanguages: []string{"en"},
		Urgency:            2,
		Budget:             model.Budget{Min: 40, Max: 100},
		SpecificChallenges: []string{"housing"},
	})
	for i, id := range []string{"coach-a", "coach-b", "coach-c"} {
		_ = s.UpsertCoach(ctx, &model.CoachFeatureSet{
			CoachID:    id,
			Expertise:  []string{"housing"},
			Languages:  []string{"en"},
			Countries:  []string{"NL"},
			HourlyRate: 80,
			Availability: []model.AvailabilityWindow{
				{Day: time.Tuesday, Start: 600, End: 660 + i*60, Timezone: "UTC"},
			},
			Rating:   4.5,
			Verified: true,
			Active:   true,
		})
	}
}

func TestClient(t *testing.T) {
	Convey("Given a client talking to a live API", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		seed(ctx, store)
		svc := service.New(store, cache.NewInMemoryCache())
		srv := httptest.NewServer(api.NewServer(svc, svc).Handler(ctx))
		Reset(srv.Close)

		c := client.New(srv.URL+"/", client.WithTimeout(5*time.Second))

		Convey("When matches are requested twice", func() {
			first, err := c.Match(ctx, client.MatchRequest{ClientID: "client-1"})
			So(err, ShouldBeNil)
			second, err := c.Match(ctx, client.MatchRequest{ClientID: "client-1", Limit: 2})
			So(err, ShouldBeNil)

			Convey("Then the ranking decodes and the repeat is cached", func() {
				So(first.TotalMatches, ShouldEqual, 3)
				So(first.Cached, ShouldBeFalse)
				So(first.Matches[0].CoachID, ShouldEqual, "coach-c")
				So(first.Matches[0].Rank, ShouldEqual, 1)
				So(second.Cached, ShouldBeTrue)
				So(second.Matches, ShouldHaveLength, 2)
				So(second.ResultID, ShouldEqual, first.ResultID)
			})

			Convey("Then cache info and clear round-trip", func() {
				info, err := c.CacheInfo(ctx, "client-1")
				So(err, ShouldBeNil)
				So(info.Exists, ShouldBeTrue)
				So(info.TTLSeconds, ShouldBeGreaterThan, 0)

				cleared, err := c.ClearCache(ctx, "client-1")
				So(err, ShouldBeNil)
				So(cleared.ClientID, ShouldEqual, "client-1")

				info, err = c.CacheInfo(ctx, "client-1")
				So(err, ShouldBeNil)
				So(info.Exists, ShouldBeFalse)
			})
		})

		Convey("When the client is unknown", func() {
			_, err := c.Match(ctx, client.MatchRequest{ClientID: "ghost"})

			Convey("Then the API error is typed", func() {
				So(errors.Is(err, client.ErrNotFound), ShouldBeTrue)
				var apiErr *client.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.Status, ShouldEqual, http.StatusNotFound)
				So(apiErr.Code, ShouldEqual, "not_found")
			})
		})

		Convey("When the request is invalid", func() {
			_, err := c.Match(ctx, client.MatchRequest{ClientID: "client-1", Limit: 50})

			Convey("Then it is a 400", func() {
				var apiErr *client.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.Status, ShouldEqual, http.StatusBadRequest)
				So(errors.Is(err, client.ErrNotFound), ShouldBeFalse)
			})
		})

		Convey("Then health and stats answer", func() {
			So(c.Health(ctx), ShouldBeNil)
			stats, err := c.Stats(ctx)
			So(err, ShouldBeNil)
			So(stats, ShouldContainKey, "coaches")
		})
	})

	Convey("Given a server that cannot be reached", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := client.New(url)

		Convey("Then calls fail with a request error", func() {
			err := c.Health(context.Background())
			So(errors.Is(err, client.ErrRequest), ShouldBeTrue)
		})
	})

	Convey("Given a server answering garbage", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		Reset(srv.Close)

		Convey("Then decoding fails", func() {
			_, err := client.New(srv.URL).Match(context.Background(), client.MatchRequest{ClientID: "x"})
			So(errors.Is(err, client.ErrDecode), ShouldBeTrue)
		})
	})
}
