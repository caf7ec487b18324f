package pubsub

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"cakemarket/internal/domain/entity"
	"cakemarket/pkg/logger"
)

const redisChannelPrefix = "chat:room:"

// RedisBroadcaster does what NATSBroadcaster does over Redis pub/sub
// channels chat:room:<roomId>.
type RedisBroadcaster struct {
	rdb    *redis.Client
	local  Deliverer
	pubsub *redis.PubSub
}

func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func NewRedisBroadcaster(rdb *redis.Client, local Deliverer) *RedisBroadcaster {
	return &RedisBroadcaster{rdb: rdb, local: local}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, roomID string, message *entity.Message) error {
	data, err := encode(roomID, message)
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, redisChannelPrefix+roomID, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Start subscribes to every room channel and delivers until ctx ends.
func (b *RedisBroadcaster) Start(ctx context.Context) error {
	b.pubsub = b.rdb.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	logger.Info("Redis broadcaster subscribed to %s*", redisChannelPrefix)

	go func() {
		for msg := range b.pubsub.Channel() {
			b.handle(msg.Channel, msg.Payload)
		}
	}()
	go func() {
		<-ctx.Done()
		b.pubsub.Close()
	}()
	return nil
}

func (b *RedisBroadcaster) handle(channel, payload string) {
	env, err := decode([]byte(payload))
	if err != nil {
		logger.Warn("Redis broadcaster: dropping message on %s: %v", channel, err)
		return
	}
	if room := strings.TrimPrefix(channel, redisChannelPrefix); room != env.RoomID {
		logger.Warn("Redis broadcaster: channel %s carries room %s, ignoring", channel, env.RoomID)
		return
	}
	b.local.Deliver(env.RoomID, env.Message)
}

func (b *RedisBroadcaster) Close() error {
	if b.pubsub == nil {
		return nil
	}
	return b.pubsub.Close()
}
