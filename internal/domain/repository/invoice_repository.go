package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/vetdesk/clinicpos-api/internal/domain/entity"
	"github.com/vetdesk/clinicpos-api/pkg/pagination"
)

// InvoiceRepository defines the interface for invoice data operations
type InvoiceRepository interface {
	// Create stores an invoice together with its line allocations
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*entity.Invoice, error)
	// Delete removes an invoice and its allocations (payment compensation)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByEncounter(ctx context.Context, encounterID uuid.UUID) ([]entity.Invoice, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params *pagination.PaginationParams) ([]entity.Invoice, int64, error)
}
