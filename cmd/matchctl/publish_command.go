package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/coachmatch/internal/adapters/mq/events"
	"github.com/okian/coachmatch/pkg/logger"
)

type publishFlags struct {
	natsURL     string
	clientTopic string
	coachTopic  string
}

func newPublishCommand() *cobra.Command {
	flags := &publishFlags{}
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Announce profile changes on NATS",
	}
	publishCmd.PersistentFlags().StringVar(&flags.natsURL, "nats", "nats://127.0.0.1:4222", "NATS server URL")
	publishCmd.PersistentFlags().StringVar(&flags.clientTopic, "client-topic", events.DefaultClientTopic, "Topic for client updates")
	publishCmd.PersistentFlags().StringVar(&flags.coachTopic, "coach-topic", events.DefaultCoachTopic, "Topic for coach updates")

	publishCmd.AddCommand(&cobra.Command{
		Use:   "client-updated <client-id>",
		Short: "Tell matchers that a client profile changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.publish(cmd, func(p *events.Publisher) error { return p.ClientUpdated(args[0]) })
		},
	})
	publishCmd.AddCommand(&cobra.Command{
		Use:   "coach-updated <coach-id>",
		Short: "Tell matchers that a coach profile changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.publish(cmd, func(p *events.Publisher) error { return p.CoachUpdated(args[0]) })
		},
	})
	return publishCmd
}

func (f *publishFlags) publish(cmd *cobra.Command, send func(*events.Publisher) error) error {
	pub, err := events.NewNATSPublisher(f.natsURL, events.LogAdapter(logger.Get().Named("publish")))
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	if err := send(events.NewPublisher(pub, f.clientTopic, f.coachTopic)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Published")
	return nil
}
