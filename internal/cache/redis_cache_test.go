package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
)

func TestRedisClassCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewRedisClassCache(client, "test:class:")
	ctx := context.Background()

	_, err := c.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	class := &domain.Class{ID: "c1", OwnerID: "alice", Members: []string{"alice", "bob"}}
	require.NoError(t, c.Set(ctx, class, time.Minute))
	assert.True(t, mr.Exists("test:class:c1"))

	got, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, class, got)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, class, time.Minute))
	require.NoError(t, c.Delete(ctx, "c1"))
	_, err = c.Get(ctx, "c1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, c.Delete(ctx))
}
