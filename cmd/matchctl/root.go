package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/coachmatch/internal/adapters/http/client"
	"github.com/okian/coachmatch/pkg/logger"
)

const (
	defaultServer  = "http://localhost:9080"
	envServer      = "MATCHCTL_SERVER"
	defaultTimeout = 30 * time.Second
)

type commandContext struct {
	server   string
	timeout  time.Duration
	logLevel string
}

func (c *commandContext) client() *client.Client {
	return client.New(c.server, client.WithTimeout(c.timeout))
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "matchctl",
		Short:         "Query and exercise the coach matching service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr(), logger.FormatText); err != nil {
				return err
			}
			return logger.SetLevelString(ctx.logLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	server := os.Getenv(envServer)
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&ctx.server, "server", server, "Base URL of the matching service (env "+envServer+")")
	rootCmd.PersistentFlags().DurationVar(&ctx.timeout, "timeout", defaultTimeout, "Per-request timeout")
	rootCmd.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newMatchCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newSeedCommand())
	rootCmd.AddCommand(newLoadCommand(ctx))
	rootCmd.AddCommand(newPublishCommand())

	return rootCmd
}
