package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HichuYamichu/goelearn-sub000/internal/config"
)

const (
	flagJoined    = "1"
	flagNotJoined = "0"
)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore implements PresenceStore on Redis hashes.
//
// Key layout:
//
//	meeting:{class_id}  HASH  user_id -> "0" | "1"
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a presence store on an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func meetingKey(classID string) string {
	return "meeting:" + classID
}

func (s *RedisStore) SetJoined(ctx context.Context, classID, userID string, joined bool) error {
	flag := flagNotJoined
	if joined {
		flag = flagJoined
	}
	if err := s.client.HSet(ctx, meetingKey(classID), userID, flag).Err(); err != nil {
		return fmt.Errorf("presence set %s/%s: %w", classID, userID, err)
	}
	return nil
}

func (s *RedisStore) MarkConnected(ctx context.Context, classID, userID string) error {
	if err := s.client.HSetNX(ctx, meetingKey(classID), userID, flagNotJoined).Err(); err != nil {
		return fmt.Errorf("presence mark %s/%s: %w", classID, userID, err)
	}
	return nil
}

func (s *RedisStore) GetAll(ctx context.Context, classID string) (map[string]bool, error) {
	entries, err := s.client.HGetAll(ctx, meetingKey(classID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence get all %s: %w", classID, err)
	}

	out := make(map[string]bool, len(entries))
	for userID, flag := range entries {
		out[userID] = flag == flagJoined
	}
	return out, nil
}

func (s *RedisStore) IsJoined(ctx context.Context, classID, userID string) (bool, error) {
	flag, err := s.client.HGet(ctx, meetingKey(classID), userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("presence get %s/%s: %w", classID, userID, err)
	}
	return flag == flagJoined, nil
}

func (s *RedisStore) RemoveUser(ctx context.Context, classID, userID string) error {
	if err := s.client.HDel(ctx, meetingKey(classID), userID).Err(); err != nil {
		return fmt.Errorf("presence remove %s/%s: %w", classID, userID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, classID string) error {
	if err := s.client.Del(ctx, meetingKey(classID)).Err(); err != nil {
		return fmt.Errorf("presence clear %s: %w", classID, err)
	}
	return nil
}
