package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPresenceTTL = 60 * time.Second

// ConnectionRegistry answers "does this user have a live socket anywhere".
// The dispatch core queries it by value and never writes it.
type ConnectionRegistry interface {
	IsConnected(ctx context.Context, userID string) (bool, error)
}

// PresenceStore records cross-instance presence marks written by the hub.
type PresenceStore interface {
	MarkConnected(ctx context.Context, userID string) error
	MarkDisconnected(ctx context.Context, userID string) error
	IsPresent(ctx context.Context, userID string) (bool, error)
}

// RedisPresenceStore keeps a TTL'd presence key per connected user so every
// service instance sees connections held by its peers. The TTL bounds how
// stale a mark can be after an unclean instance death; the hub refreshes it
// while the connection lives.
type RedisPresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisPresenceStore(client *goredis.Client, ttl time.Duration) (*RedisPresenceStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &RedisPresenceStore{client: client, ttl: ttl}, nil
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s", strings.TrimSpace(userID))
}

func (s *RedisPresenceStore) MarkConnected(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	return s.client.Set(ctx, presenceKey(userID), "1", s.ttl).Err()
}

func (s *RedisPresenceStore) MarkDisconnected(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	return s.client.Del(ctx, presenceKey(userID)).Err()
}

func (s *RedisPresenceStore) IsPresent(ctx context.Context, userID string) (bool, error) {
	count, err := s.client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return count > 0, nil
}

// HubRegistry resolves presence through the local hub first and falls back to
// the shared store for connections held by other instances.
type HubRegistry struct {
	hub      *Hub
	presence PresenceStore
}

var _ ConnectionRegistry = (*HubRegistry)(nil)

func NewHubRegistry(hub *Hub, presence PresenceStore) (*HubRegistry, error) {
	if hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	return &HubRegistry{hub: hub, presence: presence}, nil
}

func (r *HubRegistry) IsConnected(ctx context.Context, userID string) (bool, error) {
	if r.hub.IsConnectedLocally(userID) {
		return true, nil
	}
	if r.presence == nil {
		return false, nil
	}
	return r.presence.IsPresent(ctx, userID)
}
