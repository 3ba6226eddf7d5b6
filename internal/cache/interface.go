package cache

import (
	"context"
	"time"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
)

type ClassCache interface {
	Get(ctx context.Context, classID string) (*domain.Class, error)
	Set(ctx context.Context, class *domain.Class, ttl time.Duration) error
	Delete(ctx context.Context, classIDs ...string) error
}
