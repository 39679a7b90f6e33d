package settings

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores settings in a single redis hash.
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend stores settings under the hash "<prefix>settings".
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, key: prefix + "settings"}
}

func (b *RedisBackend) GetAll(ctx context.Context) (map[string]string, error) {
	return b.client.HGetAll(ctx, b.key).Result()
}

func (b *RedisBackend) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	return b.client.HSet(ctx, b.key, values).Err()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
