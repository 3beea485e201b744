package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
)

// PendingItemRepository defines the interface for queued encounter items
type PendingItemRepository interface {
	Create(ctx context.Context, item *entity.PendingItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PendingItem, error)
	// ListOpenByEncounter returns unconsumed items for an encounter
	ListOpenByEncounter(ctx context.Context, encounterID uuid.UUID) ([]entity.PendingItem, error)
	// MarkConsumed flags an item as converted to an encounter line
	MarkConsumed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}
