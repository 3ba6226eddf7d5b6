package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/HichuYamichu/goelearn-sub000/internal/cache"
	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     ":memory:",
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.AutoMigrate(db, &domain.ClassModel{}, &domain.ClassMemberModel{}))
	return db
}

func TestGormClassRepository(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&domain.ClassModel{ID: "c1", Name: "Physics", OwnerID: "alice"}).Error)
	require.NoError(t, db.Create(&[]domain.ClassMemberModel{
		{ClassID: "c1", UserID: "carol"},
		{ClassID: "c1", UserID: "bob"},
		{ClassID: "c2", UserID: "dave"},
	}).Error)

	repo := NewGormClassRepository(db)

	class, err := repo.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", class.OwnerID)
	assert.Equal(t, []string{"bob", "carol"}, class.Members)
	assert.False(t, class.HasMember("alice"))

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrClassNotFound)
}

type countingRepo struct {
	calls       atomic.Int32
	memberCalls atomic.Int32
	delay       time.Duration
	class       *domain.Class
	err         error
}

func (r *countingRepo) GetByID(ctx context.Context, id string) (*domain.Class, error) {
	r.calls.Add(1)
	time.Sleep(r.delay)
	if r.err != nil {
		return nil, r.err
	}
	return r.class, nil
}

func (r *countingRepo) ListMembers(ctx context.Context, classID string) ([]string, error) {
	r.memberCalls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return r.class.Members, nil
}

func newTestCache(t *testing.T) *cache.RedisClassCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewRedisClassCache(client, "test:class:")
}

func TestCachedClassRepositoryCachesHits(t *testing.T) {
	next := &countingRepo{class: &domain.Class{ID: "c1", OwnerID: "alice", Members: []string{"alice"}}}
	repo := NewCachedClassRepository(next, newTestCache(t), time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		class, err := repo.GetByID(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "alice", class.OwnerID)
		assert.Equal(t, []string{"alice"}, class.Members)
	}
	assert.Equal(t, int32(1), next.calls.Load())
	assert.Equal(t, int32(3), next.memberCalls.Load())
}

func TestCachedClassRepositoryReadsMembersLive(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&domain.ClassModel{ID: "c1", Name: "Physics", OwnerID: "alice"}).Error)
	require.NoError(t, db.Create(&[]domain.ClassMemberModel{
		{ClassID: "c1", UserID: "alice"},
		{ClassID: "c1", UserID: "bob"},
	}).Error)

	classCache := newTestCache(t)
	repo := NewCachedClassRepository(NewGormClassRepository(db), classCache, time.Minute)
	ctx := context.Background()

	class, err := repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, class.HasMember("bob"))

	cached, err := classCache.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "alice", cached.OwnerID)
	assert.Empty(t, cached.Members)

	require.NoError(t, db.Where("class_id = ? AND user_id = ?", "c1", "bob").Delete(&domain.ClassMemberModel{}).Error)

	class, err = repo.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, class.HasMember("bob"))
	assert.Equal(t, []string{"alice"}, class.Members)
}

func TestCachedClassRepositoryCollapsesConcurrentMisses(t *testing.T) {
	next := &countingRepo{
		delay: 50 * time.Millisecond,
		class: &domain.Class{ID: "c1", OwnerID: "alice"},
	}
	repo := NewCachedClassRepository(next, newTestCache(t), time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.GetByID(context.Background(), "c1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedClassRepositoryDoesNotCacheMisses(t *testing.T) {
	next := &countingRepo{err: ErrClassNotFound}
	repo := NewCachedClassRepository(next, newTestCache(t), time.Minute)

	_, err := repo.GetByID(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrClassNotFound)
	_, err = repo.GetByID(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrClassNotFound)
	assert.Equal(t, int32(2), next.calls.Load())
}
