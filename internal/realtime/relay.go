package realtime

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const frameChannelPrefix = "realtime:frames:"

// FrameRelay fans realtime frames out to the instance that actually holds the
// user's sockets. Each instance subscribes to a user's frame channel only
// while it has a live connection for that user, so a publish receiver count
// above zero means some instance delivered locally.
type FrameRelay interface {
	Subscribe(ctx context.Context, userID string) error
	Unsubscribe(ctx context.Context, userID string) error
	Publish(ctx context.Context, userID string, frame []byte) (int64, error)
}

// RedisFrameRelay relays frames over Redis pub/sub. It shares the client with
// the presence store, so presence marks and frame delivery go down together.
type RedisFrameRelay struct {
	client *goredis.Client
	pubsub *goredis.PubSub
	logger *zap.Logger
}

var _ FrameRelay = (*RedisFrameRelay)(nil)

func NewRedisFrameRelay(client *goredis.Client, logger *zap.Logger) (*RedisFrameRelay, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisFrameRelay{
		client: client,
		pubsub: client.Subscribe(context.Background()),
		logger: logger,
	}, nil
}

func frameChannel(userID string) string {
	return frameChannelPrefix + strings.TrimSpace(userID)
}

func (r *RedisFrameRelay) Subscribe(ctx context.Context, userID string) error {
	return r.pubsub.Subscribe(ctx, frameChannel(userID))
}

func (r *RedisFrameRelay) Unsubscribe(ctx context.Context, userID string) error {
	return r.pubsub.Unsubscribe(ctx, frameChannel(userID))
}

// Publish sends a frame toward the user's sockets and returns how many
// instances received it.
func (r *RedisFrameRelay) Publish(ctx context.Context, userID string, frame []byte) (int64, error) {
	receivers, err := r.client.Publish(ctx, frameChannel(userID), frame).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish realtime frame: %w", err)
	}
	return receivers, nil
}

// Run delivers incoming frames to the local hub until context cancellation.
func (r *RedisFrameRelay) Run(ctx context.Context, deliver func(userID string, frame []byte)) error {
	if deliver == nil {
		return fmt.Errorf("deliver callback is required")
	}

	messages := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return r.pubsub.Close()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			userID := strings.TrimPrefix(msg.Channel, frameChannelPrefix)
			r.logger.Debug("relaying realtime frame", zap.String("userId", userID))
			deliver(userID, []byte(msg.Payload))
		}
	}
}
