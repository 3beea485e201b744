package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/internal/domain/enum"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
)

// EncounterFilterParams contains filtering parameters for encounter queries
type EncounterFilterParams struct {
	Pagination *pagination.PaginationParams
	Search     string
	CustomerID *uuid.UUID
	State      *enum.EncounterState
}

// EncounterRepository defines the interface for encounter header operations
type EncounterRepository interface {
	Create(ctx context.Context, encounter *entity.Encounter) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Encounter, error)
	// GetWithDetails retrieves an encounter with customer, patients, resources
	// and lines preloaded.
	GetWithDetails(ctx context.Context, id uuid.UUID) (*entity.Encounter, error)
	GetByName(ctx context.Context, name string) (*entity.Encounter, error)
	Update(ctx context.Context, encounter *entity.Encounter) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params *EncounterFilterParams) ([]entity.Encounter, int64, error)
	// SetPatients replaces the patient set attached to an encounter
	SetPatients(ctx context.Context, encounterID uuid.UUID, patients []entity.Patient) error
}

// LineFilterParams narrows which lines of an encounter are returned
type LineFilterParams struct {
	// PayableOnly keeps only pending or partial lines with a positive
	// remaining amount.
	PayableOnly bool
	Statuses    []enum.PaymentStatus
}

// EncounterLineRepository defines the interface for encounter line operations
type EncounterLineRepository interface {
	Create(ctx context.Context, line *entity.EncounterLine) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.EncounterLine, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.EncounterLine, error)
	Update(ctx context.Context, line *entity.EncounterLine) error
	// UpdateBatch persists several lines at once (used when settling payments)
	UpdateBatch(ctx context.Context, lines []entity.EncounterLine) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByEncounter(ctx context.Context, encounterID uuid.UUID, filter *LineFilterParams) ([]entity.EncounterLine, error)
	// SetPatients replaces the patient set attached to a line
	SetPatients(ctx context.Context, lineID uuid.UUID, patients []entity.Patient) error
}
