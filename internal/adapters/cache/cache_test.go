package cache_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/coachmatch/internal/adapters/cache"
	"github.com/okian/coachmatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func result(clientID string, fallback bool) *model.RankedMatchResult {
	return &model.RankedMatchResult{
		ID:       "r-1",
		ClientID: clientID,
		Matches:  []model.MatchScore{{CoachID: "coach-1", Score: 88.5}},
		Fallback: fallback,
	}
}

func TestInMemoryCache(t *testing.T) {
	Convey("Given an empty cache with a controllable clock", t, func() {
		clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
		c := cache.NewInMemoryCache(cache.WithClock(clock.Now))
		ctx := context.Background()

		Convey("When nothing is stored", func() {
			got, ok, err := c.Get(ctx, "client-1", "fp-1")

			Convey("Then it is a miss", func() {
				So(err, ShouldBeNil)
				So(ok, ShouldBeFalse)
				So(got, ShouldBeNil)
			})
		})

		Convey("When a result is stored", func() {
			So(c.Put(ctx, "client-1", "fp-1", result("client-1", false), time.Hour), ShouldBeNil)

			Convey("Then the exact pair hits", func() {
				got, ok, err := c.Get(ctx, "client-1", "fp-1")
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(got.Matches[0].Score, ShouldEqual, 88.5)
			})

			Convey("Then a different fingerprint misses", func() {
				_, ok, _ := c.Get(ctx, "client-1", "fp-2")
				So(ok, ShouldBeFalse)
			})

			Convey("Then mutating a returned copy does not affect the cache", func() {
				got, _, _ := c.Get(ctx, "client-1", "fp-1")
				got.Matches[0].Score = 0
				again, _, _ := c.Get(ctx, "client-1", "fp-1")
				So(again.Matches[0].Score, ShouldEqual, 88.5)
			})

			Convey("Then it is never served at or past its expiry", func() {
				clock.Advance(time.Hour - time.Nanosecond)
				_, ok, _ := c.Get(ctx, "client-1", "fp-1")
				So(ok, ShouldBeTrue)

				clock.Advance(time.Nanosecond)
				_, ok, _ = c.Get(ctx, "client-1", "fp-1")
				So(ok, ShouldBeFalse)
				So(c.Len(), ShouldEqual, 0)
			})

			Convey("Then a new fingerprint replaces the old entry", func() {
				So(c.Put(ctx, "client-1", "fp-2", result("client-1", false), time.Hour), ShouldBeNil)
				_, okOld, _ := c.Get(ctx, "client-1", "fp-1")
				_, okNew, _ := c.Get(ctx, "client-1", "fp-2")
				So(okOld, ShouldBeFalse)
				So(okNew, ShouldBeTrue)
				So(c.Len(), ShouldEqual, 1)
			})

			Convey("Then invalidation removes it", func() {
				So(c.Invalidate(ctx, "client-1"), ShouldBeNil)
				_, ok, _ := c.Get(ctx, "client-1", "fp-1")
				So(ok, ShouldBeFalse)
				So(c.Invalidate(ctx, "client-1"), ShouldBeNil)
			})

			Convey("Then Info reports key, remaining ttl and kind", func() {
				clock.Advance(10 * time.Minute)
				info, err := c.Info(ctx, "client-1")
				So(err, ShouldBeNil)
				So(info.Exists, ShouldBeTrue)
				So(info.Key, ShouldEqual, "match:client-1:fp-1")
				So(info.TTL, ShouldEqual, 50*time.Minute)
				So(info.Fallback, ShouldBeFalse)

				missing, err := c.Info(ctx, "client-2")
				So(err, ShouldBeNil)
				So(missing.Exists, ShouldBeFalse)
			})

			Convey("Then Sweep drops only expired entries", func() {
				So(c.Put(ctx, "client-2", "fp-9", result("client-2", true), 2*time.Hour), ShouldBeNil)
				So(c.Sweep(), ShouldEqual, 0)

				clock.Advance(time.Hour)
				So(c.Sweep(), ShouldEqual, 1)
				So(c.Len(), ShouldEqual, 1)
				_, ok, _ := c.Get(ctx, "client-2", "fp-9")
				So(ok, ShouldBeTrue)
			})

			Convey("Then Purge empties the cache", func() {
				c.Purge()
				So(c.Len(), ShouldEqual, 0)
			})
		})

		Convey("When a non-positive ttl is used", func() {
			err := c.Put(ctx, "client-1", "fp-1", result("client-1", false), 0)

			Convey("Then the write is rejected", func() {
				So(errors.Is(err, cache.ErrInvalidTTL), ShouldBeTrue)
			})
		})

		Convey("When the cache is closed", func() {
			So(c.Close(), ShouldBeNil)

			Convey("Then every operation reports it is unavailable", func() {
				_, _, err := c.Get(ctx, "client-1", "fp-1")
				So(errors.Is(err, cache.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(c.Put(ctx, "client-1", "fp-1", result("client-1", false), time.Hour), cache.ErrUnavailable), ShouldBeTrue)
				So(errors.Is(c.Invalidate(ctx, "client-1"), cache.ErrUnavailable), ShouldBeTrue)
				_, err = c.Info(ctx, "client-1")
				So(errors.Is(err, cache.ErrUnavailable), ShouldBeTrue)
			})
		})

		Convey("When many goroutines write and read the same client", func() {
			var wg sync.WaitGroup
			var wrong atomic.Int32
			for i := 0; i < 50; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					r := result("client-1", false)
					r.ID = fmt.Sprintf("r-%d", i)
					_ = c.Put(ctx, "client-1", fmt.Sprintf("fp-%d", i%3), r, time.Hour)
				}(i)
				go func(i int) {
					defer wg.Done()
					if got, ok, _ := c.Get(ctx, "client-1", fmt.Sprintf("fp-%d", i%3)); ok && got.ClientID != "client-1" {
						wrong.Add(1)
					}
				}(i)
			}
			wg.Wait()

			Convey("Then exactly one consistent entry remains", func() {
				So(c.Len(), ShouldEqual, 1)
				So(wrong.Load(), ShouldEqual, 0)
			})
		})
	})
}

func baseClient() model.ClientFeatureSet {
	return model.ClientFeatureSet{
		ClientID:           "client-1",
		TargetCountries:    []string{"DE", "FR"},
		CulturalGoals:      []string{"culture", "networking"},
		PreferredLanguages: []string{"en", "de"},
		Industry:           "software",
		FamilyStatus:       model.FamilyCouple,
		Urgency:            3,
		Budget:             model.Budget{Min: 50, Max: 150},
		CoachingStyle:      model.StyleSupportive,
		SpecificChallenges: []string{"housing"},
		Timezone:           "Europe/Paris",
	}
}

func TestFingerprint(t *testing.T) {
	Convey("Given a client feature set", t, func() {
		base := baseClient()
		fp, err := cache.Fingerprint(&base)
		So(err, ShouldBeNil)
		So(len(fp), ShouldEqual, 64)

		Convey("Then set ordering does not change the fingerprint", func() {
			reordered := baseClient()
			reordered.TargetCountries = []string{"FR", "DE"}
			reordered.PreferredLanguages = []string{"de", "en"}
			reordered.CulturalGoals = []string{"networking", "culture"}
			got, _ := cache.Fingerprint(&reordered)
			So(got, ShouldEqual, fp)
		})

		Convey("Then fingerprinting does not reorder the caller's slices", func() {
			So(base.TargetCountries, ShouldResemble, []string{"DE", "FR"})
			So(base.PreferredLanguages, ShouldResemble, []string{"en", "de"})
		})

		Convey("Then every field mutation changes the fingerprint", func() {
			mutations := map[string]func(c *model.ClientFeatureSet){
				"client id":     func(c *model.ClientFeatureSet) { c.ClientID = "client-2" },
				"countries":     func(c *model.ClientFeatureSet) { c.TargetCountries = append(c.TargetCountries, "ES") },
				"goals":         func(c *model.ClientFeatureSet) { c.CulturalGoals = []string{"culture"} },
				"languages":     func(c *model.ClientFeatureSet) { c.PreferredLanguages = []string{"en"} },
				"industry":      func(c *model.ClientFeatureSet) { c.Industry = "finance" },
				"family":        func(c *model.ClientFeatureSet) { c.FamilyStatus = model.FamilySingle },
				"expat":         func(c *model.ClientFeatureSet) { c.PreviousExpat = true },
				"urgency":       func(c *model.ClientFeatureSet) { c.Urgency = 4 },
				"budget min":    func(c *model.ClientFeatureSet) { c.Budget.Min = 60 },
				"budget max":    func(c *model.ClientFeatureSet) { c.Budget.Max = 151 },
				"style":         func(c *model.ClientFeatureSet) { c.CoachingStyle = model.StyleDirective },
				"challenges":    func(c *model.ClientFeatureSet) { c.SpecificChallenges = []string{"schools"} },
				"timezone":      func(c *model.ClientFeatureSet) { c.Timezone = "Europe/Berlin" },
				"empty vs none": func(c *model.ClientFeatureSet) { c.SpecificChallenges = nil },
			}
			seen := map[string]string{fp: "base"}
			for name, mutate := range mutations {
				c := baseClient()
				mutate(&c)
				got, err := cache.Fingerprint(&c)
				So(err, ShouldBeNil)
				So(got, ShouldNotEqual, fp)
				_, dup := seen[got]
				So(dup, ShouldBeFalse)
				seen[got] = name
			}
		})

		Convey("Then the key combines client and fingerprint", func() {
			key := cache.Key("client-1", fp)
			So(strings.HasPrefix(key, "match:client-1:"), ShouldBeTrue)
			So(strings.HasSuffix(key, fp), ShouldBeTrue)
		})
	})
}
