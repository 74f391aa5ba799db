package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 24 * time.Hour

// RedisPresenceStore keeps live-room viewer sets in redis so counts survive
// relay restarts and can be shared between instances.
type RedisPresenceStore struct {
	client *redis.Client
}

func NewRedisPresenceStore(client *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

func presenceKey(room string) string {
	return "live:" + room + ":viewers"
}

func (s *RedisPresenceStore) AddViewer(ctx context.Context, room, viewerID string) (int, error) {
	key := presenceKey(room)
	if err := s.client.SAdd(ctx, key, viewerID).Err(); err != nil {
		return 0, err
	}
	s.client.Expire(ctx, key, presenceTTL)

	count, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *RedisPresenceStore) RemoveViewer(ctx context.Context, room, viewerID string) (int, error) {
	key := presenceKey(room)
	if err := s.client.SRem(ctx, key, viewerID).Err(); err != nil {
		return 0, err
	}

	count, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *RedisPresenceStore) ViewerCount(ctx context.Context, room string) (int, error) {
	count, err := s.client.SCard(ctx, presenceKey(room)).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *RedisPresenceStore) ClearRoom(ctx context.Context, room string) error {
	return s.client.Del(ctx, presenceKey(room)).Err()
}
