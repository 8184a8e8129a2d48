package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lpdesk/lpdesk/internal/domain"
)

// subscriberBuffer is the per-subscription backlog; a reader that falls
// further behind loses messages rather than stalling the connection.
const subscriberBuffer = 128

// SignalBus fans position, pair and lock updates out over Redis Pub/Sub.
// Channel names carry the client's key prefix so deployments sharing one
// Redis stay apart; a channel with glob characters subscribes by pattern.
type SignalBus struct {
	c      *Client
	logger *slog.Logger
}

// NewSignalBus creates a SignalBus backed by c.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c, logger: slog.Default().With(slog.String("component", "signal_bus"))}
}

// Publish implements domain.SignalBus.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads that closes once ctx is done or the
// subscription drops.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	name := sb.c.key(channel)
	subscribe := sb.c.rdb.Subscribe
	if strings.ContainsAny(channel, "*?[") {
		subscribe = sb.c.rdb.PSubscribe
	}

	ps := subscribe(ctx, name)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscriberBuffer)
	go sb.forward(ctx, channel, ps, out)
	return out, nil
}

func (sb *SignalBus) forward(ctx context.Context, channel string, ps *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer ps.Close()

	in := ps.Channel(redis.WithChannelSize(subscriberBuffer))
	dropped := 0
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			default:
				dropped++
				if dropped == 1 || dropped%100 == 0 {
					sb.logger.Warn("slow subscriber, dropping messages",
						slog.String("channel", channel), slog.Int("dropped", dropped))
				}
			}
		}
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
