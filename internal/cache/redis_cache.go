package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisClassCache struct {
	client *redis.Client
	prefix string
}

func NewRedisClassCache(client *redis.Client, prefix string) *RedisClassCache {
	return &RedisClassCache{
		client: client,
		prefix: prefix,
	}
}

func (c *RedisClassCache) key(classID string) string {
	return c.prefix + classID
}

func (c *RedisClassCache) Get(ctx context.Context, classID string) (*domain.Class, error) {
	data, err := c.client.Get(ctx, c.key(classID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var class domain.Class
	if err := json.Unmarshal(data, &class); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &class, nil
}

func (c *RedisClassCache) Set(ctx context.Context, class *domain.Class, ttl time.Duration) error {
	data, err := json.Marshal(class)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, c.key(class.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

func (c *RedisClassCache) Delete(ctx context.Context, classIDs ...string) error {
	if len(classIDs) == 0 {
		return nil
	}

	keys := make([]string, len(classIDs))
	for i, id := range classIDs {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}

	return nil
}
