package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HichuYamichu/goelearn-sub000/internal/config"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestKeyLayout(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetJoined(ctx, "c1", "alice", true))
	require.NoError(t, s.SetJoined(ctx, "c1", "bob", false))

	assert.Equal(t, "1", mr.HGet("meeting:c1", "alice"))
	assert.Equal(t, "0", mr.HGet("meeting:c1", "bob"))
}

func TestMarkConnectedKeepsExistingFlag(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetJoined(ctx, "c1", "bob", true))
	require.NoError(t, s.MarkConnected(ctx, "c1", "bob"))
	assert.Equal(t, "1", mr.HGet("meeting:c1", "bob"))

	require.NoError(t, s.MarkConnected(ctx, "c1", "carol"))
	assert.Equal(t, "0", mr.HGet("meeting:c1", "carol"))

	joined, err := s.IsJoined(ctx, "c1", "bob")
	require.NoError(t, err)
	assert.True(t, joined)
}

func TestGetAllAndIsJoined(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	all, err := s.GetAll(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, s.SetJoined(ctx, "c1", "alice", true))
	require.NoError(t, s.SetJoined(ctx, "c1", "bob", false))
	require.NoError(t, s.SetJoined(ctx, "c2", "carol", true))

	all, err = s.GetAll(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"alice": true, "bob": false}, all)

	joined, err := s.IsJoined(ctx, "c1", "alice")
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = s.IsJoined(ctx, "c1", "bob")
	require.NoError(t, err)
	assert.False(t, joined)

	joined, err = s.IsJoined(ctx, "c1", "nobody")
	require.NoError(t, err)
	assert.False(t, joined)
}

func TestRemoveUserAndClear(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetJoined(ctx, "c1", "alice", true))
	require.NoError(t, s.SetJoined(ctx, "c1", "bob", true))

	require.NoError(t, s.RemoveUser(ctx, "c1", "bob"))
	all, err := s.GetAll(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"alice": true}, all)

	require.NoError(t, s.Clear(ctx, "c1"))
	assert.False(t, mr.Exists("meeting:c1"))

	// Both are no-ops on missing data.
	require.NoError(t, s.RemoveUser(ctx, "c1", "bob"))
	require.NoError(t, s.Clear(ctx, "c1"))
}

func TestStoreErrorsSurface(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedisStore(client)

	mr.SetError("READONLY")
	_, err := s.IsJoined(context.Background(), "c1", "alice")
	assert.Error(t, err)
	assert.Error(t, s.SetJoined(context.Background(), "c1", "alice", true))
	assert.Error(t, s.MarkConnected(context.Background(), "c1", "alice"))
}

func TestNewRedisClientFailsFast(t *testing.T) {
	_, err := NewRedisClient(config.RedisConfig{Address: "127.0.0.1:1"})
	assert.Error(t, err)
}
