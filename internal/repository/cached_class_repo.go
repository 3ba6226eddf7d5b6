package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/HichuYamichu/goelearn-sub000/internal/cache"
	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
)

// CachedClassRepository serves the class row (id and owner) from a Redis
// cache and collapses concurrent misses for the same class into one
// database query. Members are never cached: every GetByID reads them from
// next, so a removed enrollment takes effect on the next lookup.
type CachedClassRepository struct {
	next  ClassRepository
	cache cache.ClassCache
	ttl   time.Duration
	sf    singleflight.Group
}

func NewCachedClassRepository(next ClassRepository, c cache.ClassCache, ttl time.Duration) *CachedClassRepository {
	return &CachedClassRepository{
		next:  next,
		cache: c,
		ttl:   ttl,
	}
}

func (r *CachedClassRepository) GetByID(ctx context.Context, id string) (*domain.Class, error) {
	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		return r.fetchWithCache(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	header, ok := result.(*domain.Class)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from singleflight")
	}

	members, err := r.next.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.Class{
		ID:      header.ID,
		OwnerID: header.OwnerID,
		Members: members,
	}, nil
}

func (r *CachedClassRepository) ListMembers(ctx context.Context, classID string) ([]string, error) {
	return r.next.ListMembers(ctx, classID)
}

func (r *CachedClassRepository) fetchWithCache(ctx context.Context, id string) (*domain.Class, error) {
	l := log.Ctx(ctx)

	cached, err := r.cache.Get(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		l.Warn().Err(err).Str(log.FieldClassID, id).Msg("class cache get error")
	}

	class, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	header := &domain.Class{ID: class.ID, OwnerID: class.OwnerID}
	if err := r.cache.Set(ctx, header, r.ttl); err != nil {
		l.Warn().Err(err).Str(log.FieldClassID, id).Msg("class cache set error")
	}
	return header, nil
}
