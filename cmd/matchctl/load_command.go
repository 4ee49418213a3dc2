package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/coachmatch/internal/adapters/repository"
	"github.com/okian/coachmatch/internal/loadgen"
)

const defaultWorkerMultiplier = 2

func newLoadCommand(ctx *commandContext) *cobra.Command {
	var (
		cfg       loadgen.Config
		clientIDs []string
		seedFile  string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fire concurrent match requests and verify every ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.ClientIDs = clientIDs
			if seedFile != "" {
				ids, err := seedClientIDs(seedFile)
				if err != nil {
					return err
				}
				cfg.ClientIDs = append(cfg.ClientIDs, ids...)
			}

			stats, err := loadgen.Run(cmd.Context(), &cfg, ctx.client())
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			printLoadStats(cmd, stats)
			if stats.Malformed > 0 {
				return errors.New("load: malformed rankings returned")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&clientIDs, "client", nil, "Client id to request (repeatable)")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "Fixture file whose client ids are requested")
	cmd.Flags().IntVar(&cfg.Requests, "requests", 1000, "Total number of match requests")
	cmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkerMultiplier, "Concurrent requesters")
	cmd.Flags().IntVar(&cfg.Limit, "limit", 0, "Per-request limit (0 for all)")
	cmd.Flags().Float64Var(&cfg.NoCache, "no-cache-ratio", 0, "Fraction of requests that bypass the cache")
	cmd.Flags().DurationVar(&cfg.Timeout, "deadline", 10*time.Minute, "Deadline for the whole run")
	cmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "Log progress every second")
	return cmd
}

func seedClientIDs(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed repository.Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return loadgen.ClientIDs(&seed), nil
}

func printLoadStats(cmd *cobra.Command, s *loadgen.Stats) {
	rows := [][]string{
		{"requests", strconv.Itoa(s.Requests)},
		{"scored", strconv.Itoa(s.Scored)},
		{"cached", strconv.Itoa(s.Cached)},
		{"fallback", strconv.Itoa(s.Fallback)},
		{"failed", strconv.Itoa(s.Failed)},
		{"malformed", strconv.Itoa(s.Malformed)},
		{"duration", s.Duration.Round(time.Millisecond).String()},
		{"throughput/s", formatFloat(s.Throughput())},
		{"p50", s.Percentile(50).Round(time.Microsecond).String()},
		{"p95", s.Percentile(95).Round(time.Microsecond).String()},
		{"p99", s.Percentile(99).Round(time.Microsecond).String()},
		{"max", s.Percentile(100).Round(time.Microsecond).String()},
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
