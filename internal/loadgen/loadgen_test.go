package loadgen_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/coachmatch/internal/adapters/cache"
	"github.com/okian/coachmatch/internal/adapters/http/api"
	"github.com/okian/coachmatch/internal/adapters/http/client"
	"github.com/okian/coachmatch/internal/adapters/repository"
	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/loadgen"
	"github.com/okian/coachmatch/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestGenerateSeed(t *testing.T) {
	Convey("Given a generated fixture", t, func() {
		seed := loadgen.GenerateSeed(20, 40, 7)

		Convey("Then every profile validates", func() {
			So(seed.Clients, ShouldHaveLength, 20)
			So(seed.Coaches, ShouldHaveLength, 40)
			for i := range seed.Clients {
				So(seed.Clients[i].Validate(), ShouldBeNil)
			}
			for i := range seed.Coaches {
				So(seed.Coaches[i].Validate(), ShouldBeNil)
			}
		})

		Convey("Then the same seed gives the same fixture", func() {
			again := loadgen.GenerateSeed(20, 40, 7)
			So(again, ShouldResemble, seed)
			other := loadgen.GenerateSeed(20, 40, 8)
			So(other, ShouldNotResemble, seed)
		})

		Convey("Then client ids are listed in order", func() {
			ids := loadgen.ClientIDs(seed)
			So(ids, ShouldHaveLength, 20)
			So(ids[0], ShouldEqual, "client-0000")
			So(ids[19], ShouldEqual, "client-0019")
		})
	})
}

func ranked(fallback bool, scores ...float64) *client.MatchResult {
	res := &client.MatchResult{ClientID: "c", Fallback: fallback}
	for i, s := range scores {
		res.Matches = append(res.Matches, client.Match{
			CoachID:    string(rune('a' + i)),
			Rank:       i + 1,
			MatchScore: s,
			Rating:     5 - float64(i)/10,
		})
	}
	res.TotalMatches = len(res.Matches)
	return res
}

func TestVerify(t *testing.T) {
	Convey("Given rankings", t, func() {
		Convey("Then a descending ranking passes", func() {
			So(loadgen.Verify(ranked(false, 90, 80, 80, 10)), ShouldBeNil)
			So(loadgen.Verify(ranked(false)), ShouldBeNil)
		})

		Convey("Then an ascending score fails", func() {
			So(errors.Is(loadgen.Verify(ranked(false, 50, 60)), loadgen.ErrMalformed), ShouldBeTrue)
		})

		Convey("Then a fallback ranking is checked by rating", func() {
			res := ranked(true, 0, 0, 0)
			So(loadgen.Verify(res), ShouldBeNil)
			res.Matches[2].Rating = 5
			So(loadgen.Verify(res), ShouldNotBeNil)
		})

		Convey("Then equal scores must be ordered by rating, then coach id", func() {
			res := ranked(false, 80, 80)
			So(loadgen.Verify(res), ShouldBeNil)

			res.Matches[1].Rating = res.Matches[0].Rating + 0.5
			So(errors.Is(loadgen.Verify(res), loadgen.ErrMalformed), ShouldBeTrue)

			res = ranked(false, 80, 80)
			res.Matches[1].Rating = res.Matches[0].Rating
			So(loadgen.Verify(res), ShouldBeNil)
			res.Matches[0].CoachID, res.Matches[1].CoachID = "z", "y"
			So(loadgen.Verify(res), ShouldNotBeNil)
		})

		Convey("Then equal fallback ratings must be ordered by sessions, then coach id", func() {
			res := ranked(true, 0, 0)
			res.Matches[1].Rating = res.Matches[0].Rating
			res.Matches[0].TotalSessions = 10
			res.Matches[1].TotalSessions = 3
			So(loadgen.Verify(res), ShouldBeNil)

			res.Matches[1].TotalSessions = 30
			So(loadgen.Verify(res), ShouldNotBeNil)

			res.Matches[1].TotalSessions = 10
			So(loadgen.Verify(res), ShouldBeNil)
			res.Matches[0].CoachID, res.Matches[1].CoachID = "z", "y"
			So(loadgen.Verify(res), ShouldNotBeNil)
		})

		Convey("Then bad ranks, duplicates and counts fail", func() {
			res := ranked(false, 90, 80)
			res.Matches[1].Rank = 3
			So(loadgen.Verify(res), ShouldNotBeNil)

			res = ranked(false, 90, 80)
			res.Matches[1].CoachID = res.Matches[0].CoachID
			So(loadgen.Verify(res), ShouldNotBeNil)

			res = ranked(false, 90, 80)
			res.TotalMatches = 5
			So(loadgen.Verify(res), ShouldNotBeNil)

			So(loadgen.Verify(ranked(false, 120)), ShouldNotBeNil)
			So(loadgen.Verify(nil), ShouldNotBeNil)
		})
	})
}

type downMatcher struct{}

func (downMatcher) Health(context.Context) error { return errors.New("connection refused") }
func (downMatcher) Match(context.Context, client.MatchRequest) (*client.MatchResult, error) {
	return nil, errors.New("unreachable")
}

func TestRun(t *testing.T) {
	Convey("Given a live service loaded with a generated fixture", t, func() {
		ctx := context.Background()
		seed := loadgen.GenerateSeed(5, 30, 42)
		store := repository.NewMemoryStore()
		_, _, err := repository.Apply(ctx, store, seed)
		So(err, ShouldBeNil)
		svc := service.New(store, cache.NewInMemoryCache())
		srv := httptest.NewServer(api.NewServer(svc, svc).Handler(ctx))
		Reset(srv.Close)

		cfg := &loadgen.Config{
			ClientIDs: loadgen.ClientIDs(seed),
			Requests:  60,
			Workers:   4,
			Limit:     5,
			NoCache:   0.2,
			Timeout:   30 * time.Second,
		}

		Convey("When the run completes", func() {
			stats, err := loadgen.Run(ctx, cfg, client.New(srv.URL))

			Convey("Then every request succeeds with a well formed ranking", func() {
				So(err, ShouldBeNil)
				So(stats.Requests, ShouldEqual, 60)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.Malformed, ShouldEqual, 0)
				So(stats.Scored+stats.Cached+stats.Fallback, ShouldEqual, 60)
				So(stats.Cached, ShouldBeGreaterThan, 0)
				So(stats.Latencies, ShouldHaveLength, 60)
				So(stats.Percentile(50), ShouldBeLessThanOrEqualTo, stats.Percentile(100))
				So(stats.Throughput(), ShouldBeGreaterThan, 0)
			})
		})
	})

	Convey("Given a service that is down", t, func() {
		cfg := &loadgen.Config{ClientIDs: []string{"c"}, Requests: 1, Workers: 1}

		Convey("Then the run refuses to start", func() {
			_, err := loadgen.Run(context.Background(), cfg, downMatcher{})
			So(errors.Is(err, loadgen.ErrUnhealthy), ShouldBeTrue)
		})
	})

	Convey("Given invalid run parameters", t, func() {
		cases := []*loadgen.Config{
			{Requests: 1, Workers: 1},
			{ClientIDs: []string{"c"}, Workers: 1},
			{ClientIDs: []string{"c"}, Requests: 1},
			{ClientIDs: []string{"c"}, Requests: 1, Workers: 1, Limit: 11},
			{ClientIDs: []string{"c"}, Requests: 1, Workers: 1, NoCache: 2},
		}

		Convey("Then each is rejected", func() {
			for _, cfg := range cases {
				_, err := loadgen.Run(context.Background(), cfg, downMatcher{})
				So(errors.Is(err, loadgen.ErrInvalidConfig), ShouldBeTrue)
			}
		})
	})
}
