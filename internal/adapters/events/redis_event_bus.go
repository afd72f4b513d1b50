package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/zatekoja/cartosante/internal/domain/entities"
	"github.com/zatekoja/cartosante/internal/domain/providers"
	redisclient "github.com/zatekoja/cartosante/internal/infrastructure/clients/redis"
	"github.com/zatekoja/cartosante/internal/infrastructure/observability"
)

const subscriberBuffer = 64

// RedisEventBus fans directory events out to local subscribers through Redis
// Pub/Sub, so every API replica sees reloads triggered on any other.
type RedisEventBus struct {
	client *redisclient.Client
	logger *zerolog.Logger
	origin string

	mu       sync.Mutex
	channels map[string]*channelFanout
	closed   bool
}

type channelFanout struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.DirectoryEvent]struct{}
	done        chan struct{}
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client) *RedisEventBus {
	return &RedisEventBus{
		client:   client,
		logger:   observability.GetLogger(),
		origin:   uuid.NewString(),
		channels: make(map[string]*channelFanout),
	}
}

// Origin is stamped on every event this bus publishes.
func (b *RedisEventBus) Origin() string {
	return b.origin
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish publishes an event to all subscribers
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.DirectoryEvent) error {
	stamped := *event
	if stamped.Origin == "" {
		stamped.Origin = b.origin
	}
	data, err := json.Marshal(&stamped)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug().Str("channel", channel).Str("event_id", event.ID).Str("type", string(event.Type)).Msg("published directory event")
	return nil
}

// Subscribe returns a channel of events that stays open until ctx is done or
// the bus is closed. The Redis subscription is confirmed before returning.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DirectoryEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("event bus is closed")
	}

	fan, ok := b.channels[channel]
	if !ok {
		pubsub := b.client.Client().Subscribe(ctx, channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		fan = &channelFanout{
			pubsub:      pubsub,
			subscribers: make(map[chan *entities.DirectoryEvent]struct{}),
			done:        make(chan struct{}),
		}
		b.channels[channel] = fan
		go b.receive(channel, fan)
	}

	events := make(chan *entities.DirectoryEvent, subscriberBuffer)
	fan.subscribers[events] = struct{}{}
	b.logger.Debug().Str("channel", channel).Int("subscribers", len(fan.subscribers)).Msg("subscribed")

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(channel, events)
		case <-fan.done:
		}
	}()

	return events, nil
}

func (b *RedisEventBus) receive(channel string, fan *channelFanout) {
	for msg := range fan.pubsub.Channel() {
		var event entities.DirectoryEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping malformed directory event")
			continue
		}

		b.mu.Lock()
		for sub := range fan.subscribers {
			select {
			case sub <- &event:
			default:
				b.logger.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber is slow, skipping event")
			}
		}
		b.mu.Unlock()
	}
}

func (b *RedisEventBus) unsubscribe(channel string, events chan *entities.DirectoryEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	fan, ok := b.channels[channel]
	if !ok {
		return
	}
	if _, ok := fan.subscribers[events]; !ok {
		return
	}
	delete(fan.subscribers, events)
	close(events)

	if len(fan.subscribers) == 0 {
		b.closeFanout(channel, fan)
	}
}

// closeFanout must be called with b.mu held.
func (b *RedisEventBus) closeFanout(channel string, fan *channelFanout) error {
	for sub := range fan.subscribers {
		close(sub)
	}
	fan.subscribers = nil
	close(fan.done)
	delete(b.channels, channel)
	return fan.pubsub.Close()
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	var errs []error
	for channel, fan := range b.channels {
		if err := b.closeFanout(channel, fan); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", channel, err))
		}
	}
	return errors.Join(errs...)
}
