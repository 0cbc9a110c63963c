package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRelay publishes local events to a Redis channel and replays events
// from other processes into the local hub. Events carry the relay's origin so
// a process never replays its own.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	hub     *Hub
	out     chan Event
	logger  *zap.Logger
}

// NewRedisRelay returns a relay over client. Call Run to start it.
func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		out:     make(chan Event, DefaultBuffer*4),
		logger:  logger.Named("redis"),
	}
}

// Dial connects to Redis at addr and checks the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Origin identifies this process on the channel.
func (r *RedisRelay) Origin() string {
	return r.origin
}

// Publish delivers ev locally at once and queues it for Redis. It never
// blocks; when the outbound queue is full the event only reaches local
// subscribers.
func (r *RedisRelay) Publish(ev Event) {
	r.hub.Publish(ev)

	ev.Origin = r.origin
	select {
	case r.out <- ev:
	default:
		r.logger.Warn("redis outbound queue full, event not relayed", zap.String("table", ev.Table), zap.String("kind", ev.Kind))
	}
}

// Run subscribes to the channel and pumps events both ways until ctx is
// done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info("relaying changes", zap.String("channel", r.channel), zap.String("origin", r.origin))

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-r.out:
			payload, err := json.Marshal(ev)
			if err != nil {
				r.logger.Error("failed to encode event", zap.Error(err))
				continue
			}
			if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Warn("error publishing to redis", zap.Error(err))
			}
		case msg, ok := <-incoming:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				r.logger.Warn("ignoring malformed event", zap.Error(err))
				continue
			}
			if ev.Origin == r.origin {
				continue
			}
			r.hub.Publish(ev)
		}
	}
}
