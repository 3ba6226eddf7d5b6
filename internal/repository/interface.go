package repository

import (
	"context"
	"errors"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
)

var (
	ErrClassNotFound = errors.New("class not found")
)

// ClassRepository looks up classes with their owner and member list.
type ClassRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Class, error)

	// ListMembers returns the user ids enrolled in the class, sorted.
	ListMembers(ctx context.Context, classID string) ([]string, error)
}
