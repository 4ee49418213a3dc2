package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/coachmatch/internal/adapters/http/client"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		noCache bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "match <client-id>",
		Short: "Show the ranked coaches for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.MatchRequest{ClientID: args[0], Limit: limit}
			if noCache {
				useCache := false
				req.UseCache = &useCache
			}
			res, err := ctx.client().Match(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("match %s: %w", args[0], err)
			}
			if asJSON {
				return writeJSON(cmd, res)
			}
			printMatchResult(cmd, res)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of coaches to return (1-10, default all)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Recompute instead of reading the cached result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func printMatchResult(cmd *cobra.Command, res *client.MatchResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Client:    %s\n", res.ClientID)
	fmt.Fprintf(out, "Result:    %s (cached: %s, fallback: %s)\n", res.ResultID, yesNo(res.Cached), yesNo(res.Fallback))
	fmt.Fprintf(out, "Generated: %s, expires %s\n", res.GeneratedAt.Local().Format(time.DateTime), res.ExpiresAt.Local().Format(time.DateTime))

	if len(res.Matches) == 0 {
		fmt.Fprintln(out, "No eligible coaches")
		return
	}
	headers := []string{"#", "Coach", "Score", "Confidence", "Lang", "Country", "Goal", "Budget", "Avail", "Rating", "Sessions"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		rows = append(rows, []string{
			strconv.Itoa(m.Rank),
			m.CoachID,
			formatFloat(m.MatchScore),
			m.Confidence,
			formatFloat(m.SubScores.Language),
			formatFloat(m.SubScores.Country),
			formatFloat(m.SubScores.Goal),
			formatFloat(m.SubScores.Budget),
			formatFloat(m.SubScores.Availability),
			formatFloat(m.Rating),
			strconv.Itoa(m.TotalSessions),
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}
