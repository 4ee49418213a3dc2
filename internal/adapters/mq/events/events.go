// Package events consumes profile-update events and drops stale match results.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/okian/coachmatch/internal/domain/dedupe"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// Default topic names.
const (
	DefaultClientTopic = "profile.client.updated"
	DefaultCoachTopic  = "profile.coach.updated"
)

// Event results recorded in metrics.
const (
	resultInvalidated = "invalidated"
	resultObserved    = "observed"
	resultMalformed   = "malformed"
	resultFailed      = "failed"
	resultDuplicate   = "duplicate"
)

// ErrMalformed marks an event payload that cannot be decoded.
var ErrMalformed = errors.New("malformed profile event")

// ClientUpdated is published when matching-relevant client fields change.
type ClientUpdated struct {
	ClientID string `json:"client_id"`
}

// CoachUpdated is published when a coach profile changes.
type CoachUpdated struct {
	CoachID string `json:"coach_id"`
}

// Invalidator drops cached results for a client.
type Invalidator interface {
	Invalidate(ctx context.Context, clientID string) error
}

// Consumer reads profile events until its context ends or Shutdown is called.
// Coach updates are only counted and logged: cached results that include the
// coach expire with their TTL.
type Consumer struct {
	sub         message.Subscriber
	invalidator Invalidator
	clientTopic string
	coachTopic  string
	seen        *dedupe.Window
	logger      logger.Logger

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewConsumer creates a consumer reading from sub.
func NewConsumer(sub message.Subscriber, inv Invalidator, opts ...Option) *Consumer {
	c := &Consumer{
		sub:         sub,
		invalidator: inv,
		clientTopic: DefaultClientTopic,
		coachTopic:  DefaultCoachTopic,
		logger:      logger.Get().Named("events"),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.seen == nil {
		c.seen = dedupe.New()
	}
	return c
}

// Run subscribes to both topics and blocks until ctx is canceled, Shutdown is
// called, or both subscriptions close.
func (c *Consumer) Run(ctx context.Context) error {
	defer close(c.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	clientMsgs, err := c.sub.Subscribe(ctx, c.clientTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.clientTopic, err)
	}
	coachMsgs, err := c.sub.Subscribe(ctx, c.coachTopic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.coachTopic, err)
	}
	c.logger.Info(ctx, "consuming profile events",
		logger.String("client_topic", c.clientTopic),
		logger.String("coach_topic", c.coachTopic),
	)

	for clientMsgs != nil || coachMsgs != nil {
		select {
		case <-ctx.Done():
			return nil
		case <-c.shutdown:
			return nil
		case msg, ok := <-clientMsgs:
			if !ok {
				clientMsgs = nil
				continue
			}
			c.dispatch(ctx, msg, c.clientTopic, c.handleClient)
		case msg, ok := <-coachMsgs:
			if !ok {
				coachMsgs = nil
				continue
			}
			c.dispatch(ctx, msg, c.coachTopic, c.handleCoach)
		}
	}
	return nil
}

// Shutdown stops Run and waits for it to return.
func (c *Consumer) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() { close(c.shutdown) })
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		c.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// dispatch skips redelivered messages and forgets failed ones, so a
// republished copy of a failed event is handled again. Every message is
// acked: a failed invalidation is not retried, the entry still expires
// with its TTL.
func (c *Consumer) dispatch(ctx context.Context, msg *message.Message, topic string, handle func(context.Context, *message.Message) error) {
	if c.seen.SeenAndRecord(msg.UUID) {
		metrics.RecordProfileEvent(topic, resultDuplicate)
		c.logger.Debug(ctx, "skipping duplicate event", logger.String("message_id", msg.UUID))
		msg.Ack()
		return
	}
	err := handle(ctx, msg)
	if err != nil && !errors.Is(err, ErrMalformed) {
		c.seen.Forget(msg.UUID)
	}
	msg.Ack()
}

func (c *Consumer) handleClient(ctx context.Context, msg *message.Message) error {
	var ev ClientUpdated
	if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.ClientID == "" {
		metrics.RecordProfileEvent(c.clientTopic, resultMalformed)
		c.logger.Warn(ctx, "dropping malformed client event", logger.String("message_id", msg.UUID))
		return ErrMalformed
	}

	if err := c.invalidator.Invalidate(ctx, ev.ClientID); err != nil {
		metrics.RecordProfileEvent(c.clientTopic, resultFailed)
		metrics.RecordErrorByComponent("events", "invalidate_error")
		c.logger.Error(ctx, "invalidate failed",
			logger.String("client_id", ev.ClientID),
			logger.Error(err),
		)
		return fmt.Errorf("invalidate %s: %w", ev.ClientID, err)
	}
	metrics.RecordProfileEvent(c.clientTopic, resultInvalidated)
	c.logger.Debug(ctx, "client cache invalidated", logger.String("client_id", ev.ClientID))
	return nil
}

func (c *Consumer) handleCoach(ctx context.Context, msg *message.Message) error {
	var ev CoachUpdated
	if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.CoachID == "" {
		metrics.RecordProfileEvent(c.coachTopic, resultMalformed)
		c.logger.Warn(ctx, "dropping malformed coach event", logger.String("message_id", msg.UUID))
		return ErrMalformed
	}
	metrics.RecordProfileEvent(c.coachTopic, resultObserved)
	c.logger.Info(ctx, "coach profile updated, cached results expire by ttl",
		logger.String("coach_id", ev.CoachID),
	)
	return nil
}

// Publisher emits profile-update events.
type Publisher struct {
	pub         message.Publisher
	clientTopic string
	coachTopic  string
}

// NewPublisher wraps pub with the default topic names.
func NewPublisher(pub message.Publisher, clientTopic, coachTopic string) *Publisher {
	if clientTopic == "" {
		clientTopic = DefaultClientTopic
	}
	if coachTopic == "" {
		coachTopic = DefaultCoachTopic
	}
	return &Publisher{pub: pub, clientTopic: clientTopic, coachTopic: coachTopic}
}

// ClientUpdated announces a changed client profile.
func (p *Publisher) ClientUpdated(clientID string) error {
	return p.publish(p.clientTopic, ClientUpdated{ClientID: clientID})
}

// CoachUpdated announces a changed coach profile.
func (p *Publisher) CoachUpdated(coachID string) error {
	return p.publish(p.coachTopic, CoachUpdated{CoachID: coachID})
}

func (p *Publisher) publish(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	if err := p.pub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
