package delivery

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const channelPattern = "chat.*"

// RedisBridge publishes group frames through Redis pub/sub so that every
// controller process sharing the backend delivers to its own connected
// clients. The local hub subscribes to everything under the chat channel
// prefix.
type RedisBridge struct {
	rdb    *redis.Client
	hub    *Hub
	logger *logrus.Logger
}

// NewRedisBridge connects to Redis and wraps the local hub.
func NewRedisBridge(uri string, hub *Hub, logger *logrus.Logger) (*RedisBridge, error) {
	opt, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisBridge{rdb: rdb, hub: hub, logger: logger}, nil
}

// Publish sends a frame to all processes subscribed to the group channel,
// this one included.
func (b *RedisBridge) Publish(ctx context.Context, group string, frame []byte) error {
	return b.rdb.Publish(ctx, group, frame).Err()
}

// Run consumes group frames from Redis and feeds them to the local hub.
// It blocks until the context is cancelled.
func (b *RedisBridge) Run(ctx context.Context) {
	sub := b.rdb.PSubscribe(ctx, channelPattern)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if !strings.HasPrefix(m.Channel, "chat.") {
				continue
			}
			if err := b.hub.Publish(ctx, m.Channel, []byte(m.Payload)); err != nil {
				b.logger.WithError(err).Warn("redis bridge: local publish")
			}
		}
	}
}

// Close releases the Redis connection.
func (b *RedisBridge) Close() error {
	return b.rdb.Close()
}
