package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
)

// ResourceRepository defines the interface for practitioner and room data
type ResourceRepository interface {
	Create(ctx context.Context, resource *entity.Resource) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Resource, error)
	Update(ctx context.Context, resource *entity.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCategory(ctx context.Context, category enum.ResourceCategory, activeOnly bool) ([]entity.Resource, error)
}
