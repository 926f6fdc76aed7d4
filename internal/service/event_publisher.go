package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/observability"
)

// LifecycleEvent describes an accepted transition or ledger change.
type LifecycleEvent struct {
	Type       string    `json:"type"`
	EntityType string    `json:"entity_type"`
	EntityID   uint      `json:"entity_id"`
	ActivityID uint      `json:"activity_id"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	ActorID    uint      `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher fans lifecycle events out to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

type eventPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewEventPublisher publishes to Redis pub/sub and NATS when configured.
// channelBase is used for both, with ':' mapped to '.' for the NATS subject.
func NewEventPublisher(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":lifecycle"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".lifecycle"
	}
	return &eventPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event LifecycleEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			observability.EventPublishFailures().WithLabelValues("redis").Inc()
			errs = append(errs, err)
		}
	}
	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			observability.EventPublishFailures().WithLabelValues("nats").Inc()
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishEvent delivers an event on a best-effort basis.
func publishEvent(ctx context.Context, publisher EventPublisher, logger zerolog.Logger, event LifecycleEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event", event.Type).Uint("entity_id", event.EntityID).Msg("failed to publish lifecycle event")
	}
}
