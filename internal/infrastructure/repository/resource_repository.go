package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	domainRepo "github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"gorm.io/gorm"
)

type resourceRepository struct {
	db *gorm.DB
}

// NewResourceRepository creates a new resource repository
func NewResourceRepository(db *gorm.DB) domainRepo.ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, resource *entity.Resource) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

func (r *resourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Resource, error) {
	var resource entity.Resource
	err := r.db.WithContext(ctx).First(&resource, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &resource, err
}

func (r *resourceRepository) Update(ctx context.Context, resource *entity.Resource) error {
	return r.db.WithContext(ctx).Save(resource).Error
}

func (r *resourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.Resource{}, "id = ?", id).Error
}

func (r *resourceRepository) ListByCategory(ctx context.Context, category enum.ResourceCategory, activeOnly bool) ([]entity.Resource, error) {
	var resources []entity.Resource
	query := r.db.WithContext(ctx).Where("category = ?", category)
	if activeOnly {
		query = query.Scopes(Active())
	}
	err := query.Order("name ASC").Find(&resources).Error
	return resources, err
}
