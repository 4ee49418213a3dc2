package events

import (
	"github.com/okian/coachmatch/internal/domain/dedupe"
	"github.com/okian/coachmatch/pkg/logger"
)

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithTopics overrides the topic names. Empty values keep the defaults.
func WithTopics(client, coach string) Option {
	return func(c *Consumer) {
		if client != "" {
			c.clientTopic = client
		}
		if coach != "" {
			c.coachTopic = coach
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDedupeWindow sets how many recent message ids are remembered to skip
// redeliveries.
func WithDedupeWindow(n int) Option {
	return func(c *Consumer) {
		c.seen = dedupe.New(dedupe.WithSize(n))
	}
}
