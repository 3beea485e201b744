package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	domainRepo "github.com/vetdesk/clinicpos-api/internal/domain/repository"
	"gorm.io/gorm"
)

type pendingItemRepository struct {
	db *gorm.DB
}

// NewPendingItemRepository creates a new pending item repository
func NewPendingItemRepository(db *gorm.DB) domainRepo.PendingItemRepository {
	return &pendingItemRepository{db: db}
}

func (r *pendingItemRepository) Create(ctx context.Context, item *entity.PendingItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *pendingItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PendingItem, error) {
	var item entity.PendingItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Patient").
		First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &item, err
}

func (r *pendingItemRepository) ListOpenByEncounter(ctx context.Context, encounterID uuid.UUID) ([]entity.PendingItem, error) {
	var items []entity.PendingItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Patient").
		Where("encounter_id = ? AND consumed = ?", encounterID, false).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *pendingItemRepository) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&entity.PendingItem{}).
		Where("id = ?", id).
		Update("consumed", true).Error
}

func (r *pendingItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.PendingItem{}, "id = ?", id).Error
}
