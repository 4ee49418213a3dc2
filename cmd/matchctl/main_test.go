package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
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

type cliTestEnv struct {
	url      string
	seedFile string
	clientID string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	ctx := context.Background()

	fixture := loadgen.GenerateSeed(3, 25, 11)
	store := repository.NewMemoryStore()
	if _, _, err := repository.Apply(ctx, store, fixture); err != nil {
		t.Fatalf("apply fixture: %v", err)
	}
	svc := service.New(store, cache.NewInMemoryCache())
	srv := httptest.NewServer(api.NewServer(svc, svc).Handler(ctx))
	t.Cleanup(srv.Close)

	raw, err := json.Marshal(fixture)
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	seedFile := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(seedFile, raw, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return &cliTestEnv{url: srv.URL, seedFile: seedFile, clientID: fixture.Clients[0].ClientID}
}

func (e *cliTestEnv) run(args ...string) (string, error) {
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--server", e.url, "--timeout", "10s"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMatchCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	Convey("Given a running service", t, func() {
		Convey("When matches are shown as a table", func() {
			out, err := env.run("match", env.clientID, "--limit", "3")

			Convey("Then the ranking is rendered", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "Client:    "+env.clientID)
				So(out, ShouldContainSubstring, "CONFIDENCE")
				So(out, ShouldContainSubstring, "coach-")
			})
		})

		Convey("When matches are requested as JSON without the cache", func() {
			_, err := env.run("match", env.clientID)
			So(err, ShouldBeNil)
			out, err := env.run("match", env.clientID, "--no-cache", "--json")
			So(err, ShouldBeNil)

			Convey("Then the response decodes and was recomputed", func() {
				var res client.MatchResult
				So(json.Unmarshal([]byte(out), &res), ShouldBeNil)
				So(res.ClientID, ShouldEqual, env.clientID)
				So(res.Cached, ShouldBeFalse)
				So(loadgen.Verify(&res), ShouldBeNil)
			})
		})

		Convey("When the client is unknown", func() {
			_, err := env.run("match", "nobody")

			Convey("Then the command fails with a not found error", func() {
				So(errors.Is(err, client.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the client id is missing", func() {
			_, err := env.run("match")

			Convey("Then cobra rejects the call", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestCacheCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	Convey("Given a client with a cached result", t, func() {
		_, err := env.run("match", env.clientID)
		So(err, ShouldBeNil)

		Convey("When cache info is shown", func() {
			out, err := env.run("cache", "info", env.clientID)

			Convey("Then the key and ttl are printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "match:"+env.clientID+":")
				So(out, ShouldContainSubstring, "Fallback: no")
			})
		})

		Convey("When the cache is cleared", func() {
			out, err := env.run("cache", "clear", env.clientID)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Cleared cached result for "+env.clientID)

			Convey("Then info reports nothing cached", func() {
				out, err := env.run("cache", "info", env.clientID, "--json")
				So(err, ShouldBeNil)
				var info client.CacheInfo
				So(json.Unmarshal([]byte(out), &info), ShouldBeNil)
				So(info.Exists, ShouldBeFalse)

				out, err = env.run("cache", "info", env.clientID)
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "No cached result")
			})
		})
	})
}

func TestStatsCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	Convey("Given a running service", t, func() {
		out, err := env.run("stats")

		Convey("Then counters are listed by name", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "coaches")
			So(out, ShouldContainSubstring, "scoringTimeoutMs")
		})
	})
}

func TestSeedCommand(t *testing.T) {
	env := &cliTestEnv{url: "http://127.0.0.1:1"}

	Convey("Given the seed generator", t, func() {
		Convey("When writing to stdout", func() {
			out, err := env.run("seed", "generate", "--clients", "2", "--coaches", "4", "--seed", "5")

			Convey("Then the fixture is valid JSON", func() {
				So(err, ShouldBeNil)
				var seed repository.Seed
				So(json.Unmarshal([]byte(out), &seed), ShouldBeNil)
				So(seed.Clients, ShouldHaveLength, 2)
				So(seed.Coaches, ShouldHaveLength, 4)
			})
		})

		Convey("When writing to a file", func() {
			path := filepath.Join(t.TempDir(), "fixture.json")
			out, err := env.run("seed", "generate", "--clients", "1", "--coaches", "2", "-o", path)

			Convey("Then the file loads into a store", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, path)
				clients, coaches, err := repository.LoadSeed(context.Background(), repository.NewMemoryStore(), path)
				So(err, ShouldBeNil)
				So(clients, ShouldEqual, 1)
				So(coaches, ShouldEqual, 2)
			})
		})

		Convey("When counts are negative", func() {
			_, err := env.run("seed", "generate", "--clients", "-1")

			Convey("Then it is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoadCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	Convey("Given a fixture file of the served clients", t, func() {
		out, err := env.run("load", "--seed-file", env.seedFile, "--requests", "30", "--workers", "3", "--no-cache-ratio", "0.1")

		Convey("Then the run reports every request", func() {
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "requests")
			So(out, ShouldContainSubstring, "malformed")
			So(strings.Contains(out, "30"), ShouldBeTrue)
		})
	})

	Convey("Given no clients to request", t, func() {
		_, err := env.run("load", "--requests", "5")

		Convey("Then the run is rejected", func() {
			So(errors.Is(err, loadgen.ErrInvalidConfig), ShouldBeTrue)
		})
	})

	Convey("Given a server that is down", t, func() {
		down := &cliTestEnv{url: "http://127.0.0.1:1"}
		start := time.Now()
		_, err := down.run("load", "--client", "c", "--requests", "1")

		Convey("Then the health check fails fast", func() {
			So(errors.Is(err, loadgen.ErrUnhealthy), ShouldBeTrue)
			So(time.Since(start), ShouldBeLessThan, 15*time.Second)
		})
	})
}
