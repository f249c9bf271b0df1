package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const channel = "chat.relay"

// Bridge fans frames out across chat-service instances over Redis
// pub/sub. With no Redis client configured it degrades to local-only
// delivery through the hub.
type Bridge struct {
	hub    *Hub
	rdb    *redis.Client
	logger *slog.Logger
}

func NewBridge(hub *Hub, rdb *redis.Client, logger *slog.Logger) *Bridge {
	return &Bridge{hub: hub, rdb: rdb, logger: logger}
}

// Publish delivers a frame to every instance. The publishing instance
// receives its own frame through the subscription, so local delivery
// happens exactly once either way.
func (b *Bridge) Publish(ctx context.Context, frame Frame) {
	if b.rdb == nil {
		b.hub.Broadcast(frame)
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		b.logger.Error("relay frame marshal failed", "err", err)
		return
	}
	if err := b.rdb.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Warn("relay publish failed", "err", err)
		b.hub.Broadcast(frame)
	}
}

// Run subscribes to the Redis channel and rebroadcasts frames coming
// from other instances until the context ends.
func (b *Bridge) Run(ctx context.Context) {
	if b.rdb == nil {
		return
	}

	sub := b.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame Frame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				b.logger.Warn("relay frame decode failed", "err", err)
				continue
			}
			b.hub.Broadcast(frame)
		}
	}
}
