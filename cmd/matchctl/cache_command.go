package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear cached match results",
	}
	cacheCmd.AddCommand(newCacheInfoCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheInfoCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <client-id>",
		Short: "Show the cached result for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := ctx.client().CacheInfo(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cache info %s: %w", args[0], err)
			}
			if asJSON {
				return writeJSON(cmd, info)
			}
			out := cmd.OutOrStdout()
			if !info.Exists {
				fmt.Fprintf(out, "No cached result for %s\n", info.ClientID)
				return nil
			}
			fmt.Fprintf(out, "Key:      %s\n", info.CacheKey)
			fmt.Fprintf(out, "TTL:      %s\n", time.Duration(info.TTLSeconds)*time.Second)
			fmt.Fprintf(out, "Fallback: %s\n", yesNo(info.Fallback))
			if info.ExpiresAt != nil {
				fmt.Fprintf(out, "Expires:  %s\n", info.ExpiresAt.Local().Format(time.DateTime))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <client-id>",
		Short: "Drop the cached result for a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ctx.client().ClearCache(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("cache clear %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached result for %s\n", res.ClientID)
			return nil
		},
	}
}
