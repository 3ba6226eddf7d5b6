package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/pkg/log"
)

// GormClassRepository implements ClassRepository using GORM. The tables are
// owned by the classroom API; the relay only reads them.
type GormClassRepository struct {
	db *gorm.DB
}

// NewGormClassRepository creates a new GORM-based class repository.
func NewGormClassRepository(db *gorm.DB) *GormClassRepository {
	return &GormClassRepository{db: db}
}

// GetByID loads a class and its member ids.
func (r *GormClassRepository) GetByID(ctx context.Context, id string) (*domain.Class, error) {
	l := log.Ctx(ctx)

	var model domain.ClassModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldClassID, id).Msg("failed to get class by id")
		return nil, result.Error
	}

	members, err := r.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	return &domain.Class{
		ID:      model.ID,
		OwnerID: model.OwnerID,
		Members: members,
	}, nil
}

func (r *GormClassRepository) ListMembers(ctx context.Context, classID string) ([]string, error) {
	var members []string
	err := r.db.WithContext(ctx).
		Model(&domain.ClassMemberModel{}).
		Where("class_id = ?", classID).
		Order("user_id").
		Pluck("user_id", &members).Error
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldClassID, classID).Msg("failed to list class members")
		return nil, err
	}
	return members, nil
}
