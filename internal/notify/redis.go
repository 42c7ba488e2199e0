package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"vetcare/backend/internal/domain"
)

const DefaultRedisChannel = "vetcare:appointment-events"

// Redis publishes events as JSON on a pub/sub channel. Subscribers that are
// offline miss events; use the AMQP driver when delivery must survive restarts.
type Redis struct {
	client  redis.UniversalClient
	channel string
}

func NewRedis(client redis.UniversalClient, channel string) *Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Redis{client: client, channel: channel}
}

func (n *Redis) Notify(ctx context.Context, ev domain.AppointmentEvent) error {
	body, err := encode(ev)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Type, n.channel, err)
	}
	return nil
}
