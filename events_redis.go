package blockhub

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultProjectChannel = "blockhub:projects"

// RedisProjectEvents publishes the id of every updated project on a Redis
// channel so that all server instances can refresh their subscribers.
type RedisProjectEvents struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisProjectEvents(client redis.UniversalClient, channel string) *RedisProjectEvents {
	if channel == "" {
		channel = DefaultProjectChannel
	}
	return &RedisProjectEvents{client: client, channel: channel}
}

func (e *RedisProjectEvents) ProjectUpdated(ctx context.Context, id ProjectID) error {
	if err := e.client.Publish(ctx, e.channel, string(id)).Err(); err != nil {
		return fmt.Errorf("publish project update: %w", err)
	}
	return nil
}

// Subscribe calls fn for every project update until ctx is done.
func (e *RedisProjectEvents) Subscribe(ctx context.Context, fn func(ProjectID)) error {
	sub := e.client.Subscribe(ctx, e.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", e.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn(ProjectID(msg.Payload))
		}
	}
}
